package logic

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// FieldCipher 敏感字段加解密
type FieldCipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(value string) (string, error)
}

// CardLogic 支付卡登记
type CardLogic struct {
	db      *gorm.DB
	gateway PaymentGateway
	cipher  FieldCipher
	pg      string
	now     func() time.Time
}

func NewCardLogic(db *gorm.DB, gw PaymentGateway, c FieldCipher, pg string) *CardLogic {
	return &CardLogic{db: db, gateway: gw, cipher: c, pg: pg, now: time.Now}
}

// RegisterCardRequest 卡片登记请求
type RegisterCardRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	Birth      string `json:"birth"`
	Pwd2Digit  string `json:"pwd_2digit"`
}

// RegisterCard 校验卡信息，在网关生成账单键后加密保存
func (l *CardLogic) RegisterCard(ctx context.Context, actor Actor, req *RegisterCardRequest) (*model.RegisterPaymentModel, error) {
	digits, err := validateCard(req)
	if err != nil {
		return nil, err
	}
	mask := maskCard(digits)

	var count int64
	if err := l.db.Model(&model.RegisterPaymentModel{}).
		Where("user_id = ? AND card_mask = ?", actor.Id, mask).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ConflictError("该卡已登记")
	}

	customerUid := fmt.Sprintf("%s_%d", actor.Email, l.now().UnixMilli())
	start := time.Now()
	_, err = l.gateway.CreateCustomer(ctx, gateway.CustomerRequest{
		CustomerUid: customerUid,
		CardNumber:  req.CardNumber,
		Expiry:      req.Expiry,
		Birth:       req.Birth,
		Pwd2Digit:   req.Pwd2Digit,
		PG:          l.pg,
	})
	metrics.GatewayLatency.WithLabelValues("create_customer").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, ExternalError("卡片登记失败", err)
	}

	encrypted, err := l.cipher.Encrypt(digits)
	if err != nil {
		return nil, fmt.Errorf("encrypt card: %w", err)
	}

	card := model.RegisterPaymentModel{
		UserId:      actor.Id,
		CustomerUid: customerUid,
		CardNumber:  encrypted,
		CardMask:    mask,
	}
	if err := l.db.Create(&card).Error; err != nil {
		return nil, fmt.Errorf("save card: %w", err)
	}
	return &card, nil
}

// ListCards 只返回卡号掩码
func (l *CardLogic) ListCards(actor Actor) ([]model.RegisterPaymentModel, error) {
	var cards []model.RegisterPaymentModel
	err := l.db.Where("user_id = ?", actor.Id).Order("id DESC").Find(&cards).Error
	return cards, err
}

func (l *CardLogic) DeleteCard(actor Actor, id int64) error {
	var card model.RegisterPaymentModel
	if err := l.db.First(&card, id).Error; err != nil {
		return notFoundOr(err, "支付卡不存在")
	}
	if err := requireOwner(actor, &card); err != nil {
		return err
	}
	return l.db.Delete(&card).Error
}

func validateCard(req *RegisterCardRequest) (string, error) {
	if len(req.CardNumber) < 19 {
		return "", ValidationError("card_number", "卡号格式应为 XXXX-XXXX-XXXX-XXXX")
	}
	digits := strings.ReplaceAll(req.CardNumber, "-", "")
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return "", ValidationError("card_number", "卡号只能包含数字")
		}
	}
	if len(digits) < 12 {
		return "", ValidationError("card_number", "卡号位数不足")
	}
	if len(req.Expiry) < 7 {
		return "", ValidationError("expiry", "有效期格式应为 YYYY-MM")
	}
	if len(req.Birth) < 6 {
		return "", ValidationError("birth", "生日格式应为 YYMMDD")
	}
	if len(req.Pwd2Digit) < 2 {
		return "", ValidationError("pwd_2digit", "请输入密码前两位")
	}
	return digits, nil
}

// maskCard 保留前 8 位与后 4 位
func maskCard(digits string) string {
	return digits[:8] + "****" + digits[len(digits)-4:]
}
