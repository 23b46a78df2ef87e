package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/email"
	"github.com/mhmpets/mhm_server/internal/repository"
)

// PayPal 事件类型
const (
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventPaymentSaleCompleted  = "PAYMENT.SALE.COMPLETED"
	EventPaymentCapture        = "PAYMENT.CAPTURE.COMPLETED"

	EventLegacyIPN   = "IPN"
	eventTypeUnknown = "UNKNOWN"
)

// 对账动作
const (
	ActionActivated = "activated"
	ActionCancelled = "cancelled"
	ActionExtended  = "extended"
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
)

const (
	ipnStatusCompleted   = "Completed"
	ipnTxnTypeSubPayment = "subscr_payment"
)

// DeliveryDeduper 重复投递判定，Claim 返回 false 表示已处理过
type DeliveryDeduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type WebhookService struct {
	entitlements *EntitlementService
	eventRepo    *repository.EventLogRepository
	catalog      *PlanCatalog
	deduper      DeliveryDeduper
}

func NewWebhookService(
	entitlements *EntitlementService,
	eventRepo *repository.EventLogRepository,
	catalog *PlanCatalog,
	deduper DeliveryDeduper,
) *WebhookService {
	return &WebhookService{
		entitlements: entitlements,
		eventRepo:    eventRepo,
		catalog:      catalog,
		deduper:      deduper,
	}
}

// HandlePaymentWebhook 处理 PayPal webhook，先落日志再分类
func (s *WebhookService) HandlePaymentWebhook(ctx context.Context, raw []byte) (*dto.WebhookResult, error) {
	var event dto.PayPalWebhookEvent
	parseErr := json.Unmarshal(raw, &event)

	eventType := event.EventType
	if eventType == "" {
		eventType = eventTypeUnknown
	}
	s.appendLog(ctx, eventType, string(raw))

	if parseErr != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload", ErrValidation)
	}

	if !s.claim(ctx, "paypal:"+event.ID) {
		log.Printf("Webhook: duplicate delivery %s (%s)", event.ID, eventType)
		return &dto.WebhookResult{EventType: eventType, Action: ActionDuplicate, Message: "Event already processed"}, nil
	}

	result, err := s.reconcile(ctx, &event)
	if err != nil {
		s.release(ctx, "paypal:"+event.ID)
		return nil, err
	}
	return result, nil
}

func (s *WebhookService) reconcile(ctx context.Context, event *dto.PayPalWebhookEvent) (*dto.WebhookResult, error) {
	result := &dto.WebhookResult{EventType: event.EventType}

	switch event.EventType {
	case EventSubscriptionActivated, EventSubscriptionCreated:
		res, err := decodeResource[dto.PayPalSubscriptionResource](event.Resource)
		if err != nil {
			return nil, err
		}
		subEmail := subscriberEmail(res)
		if subEmail == "" {
			return nil, ErrEmailRequired
		}

		plan := s.catalog.ResolveProviderPlan(res.PlanID)
		if _, err := s.entitlements.Register(ctx, RegisterParams{Email: subEmail, Plan: plan, TxnID: res.ID}); err != nil {
			return nil, err
		}
		log.Printf("Webhook: %s activated plan %s", email.RedactEmail(subEmail), plan)
		result.Action = ActionActivated
		result.Plan = plan
		result.Message = "Subscription activated"

	case EventSubscriptionCancelled, EventSubscriptionExpired, EventSubscriptionSuspended:
		res, err := decodeResource[dto.PayPalSubscriptionResource](event.Resource)
		if err != nil {
			return nil, err
		}
		subEmail := subscriberEmail(res)
		if subEmail == "" {
			return nil, ErrEmailRequired
		}

		if err := s.entitlements.Cancel(ctx, subEmail, ""); err != nil {
			return nil, err
		}
		log.Printf("Webhook: %s subscription ended (%s)", email.RedactEmail(subEmail), event.EventType)
		result.Action = ActionCancelled
		result.Message = "Subscription cancelled"

	case EventPaymentSaleCompleted, EventPaymentCapture:
		res, err := decodeResource[dto.PayPalPaymentResource](event.Resource)
		if err != nil {
			return nil, err
		}
		result.Action = ActionExtended

		payerEmail := ""
		if res.Payer != nil {
			payerEmail = strings.TrimSpace(res.Payer.EmailAddress)
		}
		if payerEmail == "" {
			log.Printf("Webhook: payment %s without payer email, skipped", res.ID)
			result.Action = ActionIgnored
			result.Message = "No email found"
			return result, nil
		}

		found, err := s.entitlements.ExtendByOneYear(ctx, payerEmail, "")
		if err != nil {
			return nil, err
		}
		log.Printf("Webhook: payment %.2f from %s, subscriber found=%v", paymentAmount(res), email.RedactEmail(payerEmail), found)
		if !found {
			result.Action = ActionIgnored
		}

	default:
		result.Action = ActionIgnored
		result.Message = "Event logged"
	}

	return result, nil
}

// HandleLegacyNotification 处理旧版 IPN 表单通知，按金额推断套餐
func (s *WebhookService) HandleLegacyNotification(ctx context.Context, fields map[string]string) (*dto.WebhookResult, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", fields))
	}
	s.appendLog(ctx, EventLegacyIPN, string(payload))

	n := dto.LegacyPaymentNotification{
		PaymentStatus: fields["payment_status"],
		TxnType:       fields["txn_type"],
		PayerEmail:    strings.TrimSpace(fields["payer_email"]),
		Gross:         fields["mc_gross"],
		TxnID:         fields["txn_id"],
	}
	result := &dto.WebhookResult{EventType: EventLegacyIPN, Action: ActionIgnored}

	if n.PaymentStatus != ipnStatusCompleted || n.TxnType != ipnTxnTypeSubPayment {
		return result, nil
	}
	if n.PayerEmail == "" {
		log.Printf("IPN: txn %s without payer email, skipped", n.TxnID)
		return result, nil
	}

	dedupKey := ""
	if n.TxnID != "" {
		dedupKey = "ipn:" + n.TxnID
	}
	if !s.claim(ctx, dedupKey) {
		log.Printf("IPN: duplicate delivery %s", n.TxnID)
		result.Action = ActionDuplicate
		return result, nil
	}

	// 金额异常按 0 处理，落到默认付费套餐
	amount, err := strconv.ParseFloat(strings.TrimSpace(n.Gross), 64)
	if err != nil {
		amount = 0
	}
	plan := s.catalog.PlanForAmount(amount)

	if _, err := s.entitlements.Register(ctx, RegisterParams{Email: n.PayerEmail, Plan: plan, TxnID: n.TxnID}); err != nil {
		s.release(ctx, dedupKey)
		return nil, err
	}

	log.Printf("IPN: %s paid %s, plan %s", email.RedactEmail(n.PayerEmail), n.Gross, plan)
	result.Action = ActionActivated
	result.Plan = plan
	return result, nil
}

// appendLog 写事件日志，失败只记录不中断
func (s *WebhookService) appendLog(ctx context.Context, eventType, payload string) {
	if _, err := s.eventRepo.Append(ctx, eventType, payload); err != nil {
		log.Printf("Failed to append event log (%s): %v", eventType, err)
	}
}

// claim 没有去重 key、未配置 redis 或 redis 不可用时都放行
func (s *WebhookService) claim(ctx context.Context, key string) bool {
	if s.deduper == nil || strings.HasSuffix(key, ":") || key == "" {
		return true
	}

	ok, err := s.deduper.Claim(ctx, key)
	if err != nil {
		log.Printf("Dedup claim failed for %s, processing anyway: %v", key, err)
		return true
	}
	return ok
}

func (s *WebhookService) release(ctx context.Context, key string) {
	if s.deduper == nil || strings.HasSuffix(key, ":") || key == "" {
		return
	}
	if err := s.deduper.Release(ctx, key); err != nil {
		log.Printf("Dedup release failed for %s: %v", key, err)
	}
}

func decodeResource[T any](raw json.RawMessage) (*T, error) {
	var res T
	if len(raw) == 0 || string(raw) == "null" {
		return &res, nil
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: malformed resource", ErrValidation)
	}
	return &res, nil
}

func subscriberEmail(res *dto.PayPalSubscriptionResource) string {
	if res.Subscriber == nil {
		return ""
	}
	return strings.TrimSpace(res.Subscriber.EmailAddress)
}

func paymentAmount(res *dto.PayPalPaymentResource) float64 {
	if res.Amount == nil {
		return 0
	}
	raw := res.Amount.Total
	if raw == "" {
		raw = res.Amount.Value
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return amount
}
