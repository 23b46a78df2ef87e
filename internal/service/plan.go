package service

import (
	"sort"
	"strings"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/model"
)

// Plan 套餐定义
type Plan struct {
	Code    string
	Name    string
	MaxPets int
	Price   float64
}

// PlanCatalog 套餐目录与 PayPal 套餐映射，构造后只读
type PlanCatalog struct {
	plans         map[string]Plan
	byPriceDesc   []Plan
	providerPlans map[string]string
	defaultPaid   string
}

// NewPlanCatalog 从配置复制一份不可变目录
func NewPlanCatalog(subCfg config.SubscriptionConfig, paypalCfg config.PayPalConfig) *PlanCatalog {
	c := &PlanCatalog{
		plans:         make(map[string]Plan, len(subCfg.Plans)),
		providerPlans: make(map[string]string, len(paypalCfg.PlanIDs)),
		defaultPaid:   subCfg.DefaultPaidPlan,
	}

	for code, p := range subCfg.Plans {
		code = strings.ToLower(code)
		plan := Plan{Code: code, Name: p.Name, MaxPets: p.MaxPets, Price: p.Price}
		c.plans[code] = plan
		c.byPriceDesc = append(c.byPriceDesc, plan)
	}
	sort.Slice(c.byPriceDesc, func(i, j int) bool {
		return c.byPriceDesc[i].Price > c.byPriceDesc[j].Price
	})

	// viper 会把 map key 转成小写，统一按小写比较
	for providerID, plan := range paypalCfg.PlanIDs {
		c.providerPlans[strings.ToLower(providerID)] = strings.ToLower(plan)
	}

	if _, ok := c.plans[model.PlanFree]; !ok {
		c.plans[model.PlanFree] = Plan{Code: model.PlanFree, Name: "Free", MaxPets: 1}
	}
	if c.defaultPaid == "" {
		c.defaultPaid = model.PlanBasic
	}

	return c
}

// MaxPets 未知套餐按 free 计算
func (c *PlanCatalog) MaxPets(code string) int {
	if p, ok := c.plans[code]; ok {
		return p.MaxPets
	}
	return c.plans[model.PlanFree].MaxPets
}

func (c *PlanCatalog) Get(code string) (Plan, bool) {
	p, ok := c.plans[code]
	return p, ok
}

// ResolveProviderPlan PayPal plan id -> 内部套餐，未配置的默认付费套餐
func (c *PlanCatalog) ResolveProviderPlan(providerPlanID string) string {
	if plan, ok := c.providerPlans[strings.ToLower(providerPlanID)]; ok {
		return plan
	}
	return c.defaultPaid
}

// PlanForAmount 按金额推断套餐：取价格不高于金额的最高付费套餐，否则默认付费套餐
func (c *PlanCatalog) PlanForAmount(amount float64) string {
	for _, p := range c.byPriceDesc {
		if p.Price > 0 && amount >= p.Price {
			return p.Code
		}
	}
	return c.defaultPaid
}

func (c *PlanCatalog) DefaultPaidPlan() string {
	return c.defaultPaid
}
