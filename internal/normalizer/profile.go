package normalizer

import (
	"fmt"
	"sort"
	"strings"

	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/dateutils"
	"fjacquet/ledgerflow/internal/parsererror"
)

// Built-in provider names
const (
	ProviderAlipay = "alipay"
	ProviderWeChat = "wechat"
	ProviderBank   = "bank"

	// ProviderAuto selects a profile by matching the export header.
	ProviderAuto = "auto"
)

// Profile describes how to read one provider's export.
type Profile struct {
	Name string
	config.ProviderConfig
}

// requiredColumns lists the columns that must appear in the header row.
func (p Profile) requiredColumns() []string {
	cols := []string{p.TimeColumn}
	if p.AmountColumn != "" {
		cols = append(cols, p.AmountColumn)
	} else {
		cols = append(cols, p.IncomeAmountColumn, p.ExpenseAmountColumn)
	}
	if p.DirectionColumn != "" {
		cols = append(cols, p.DirectionColumn)
	}
	if p.StatusColumn != "" {
		cols = append(cols, p.StatusColumn)
	}
	return cols
}

// Validate reports profile definitions that cannot read any export.
func (p Profile) Validate() error {
	field := "providers." + p.Name
	if p.TimeColumn == "" {
		return &parsererror.ConfigError{Field: field + ".time_column", Reason: "time column is required"}
	}
	hasAmount := p.AmountColumn != ""
	hasSplit := p.IncomeAmountColumn != "" && p.ExpenseAmountColumn != ""
	if hasAmount == hasSplit {
		return &parsererror.ConfigError{
			Field:  field + ".amount_column",
			Reason: "set either amount_column or both income_amount_column and expense_amount_column",
		}
	}
	if p.DirectionColumn != "" && len(p.IncomeMarkers) == 0 && len(p.ExpenseMarkers) == 0 {
		return &parsererror.ConfigError{Field: field + ".income_markers", Reason: "direction column needs income or expense markers"}
	}
	return nil
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		ProviderAlipay: {
			Name: ProviderAlipay,
			ProviderConfig: config.ProviderConfig{
				Encoding:           "auto",
				TimeColumn:         "交易时间",
				CounterpartyColumn: "交易对方",
				DescriptionColumns: []string{"商品说明", "备注"},
				AmountColumn:       "金额",
				DirectionColumn:    "收/支",
				StatusColumn:       "交易状态",
				TypeColumn:         "交易分类",
				DateLayouts:        []string{dateutils.DateLayoutFull, dateutils.DateLayoutSlashFull, dateutils.DateLayoutSlashShort, dateutils.DateLayoutFullShort},
				IncomeMarkers:      []string{"收入", "收", "入"},
				ExpenseMarkers:     []string{"支出", "支"},
				NeutralMarkers:     []string{"不计收支", "不计", "/"},
				CompletedStatuses:  []string{"交易成功", "支付成功", "还款成功", "已收入"},
				ExcludedMarkers:    []string{"退款"},
			},
		},
		ProviderWeChat: {
			Name: ProviderWeChat,
			ProviderConfig: config.ProviderConfig{
				Encoding:           "auto",
				TimeColumn:         "交易时间",
				CounterpartyColumn: "交易对方",
				DescriptionColumns: []string{"商品", "备注"},
				AmountColumn:       "金额(元)",
				DirectionColumn:    "收/支",
				StatusColumn:       "当前状态",
				TypeColumn:         "交易类型",
				DateLayouts:        []string{dateutils.DateLayoutFull, dateutils.DateLayoutSlashFull, dateutils.DateLayoutSlashShort, dateutils.DateLayoutFullShort},
				IncomeMarkers:      []string{"收入", "收", "入"},
				ExpenseMarkers:     []string{"支出", "支"},
				NeutralMarkers:     []string{"不计收支", "不计", "/"},
				CompletedStatuses:  []string{"支付成功", "已存入零钱", "已收钱", "对方已收钱", "朋友已收钱", "已转账", "已到账"},
				ExcludedMarkers:    []string{"退款"},
			},
		},
		ProviderBank: {
			Name: ProviderBank,
			ProviderConfig: config.ProviderConfig{
				Encoding:           "utf-8",
				TimeColumn:         "Date",
				CounterpartyColumn: "Payee",
				DescriptionColumns: []string{"Memo"},
				AmountColumn:       "Amount",
				StatusColumn:       "Status",
				TypeColumn:         "Type",
				DateLayouts:        []string{dateutils.DateLayoutFull, dateutils.DateLayoutISO, dateutils.DateLayoutRFC3339, dateutils.DateLayoutUS},
				CompletedStatuses:  []string{"completed", "posted", "cleared", "booked"},
				ExcludedMarkers:    []string{"transfer"},
			},
		},
	}
}

// Registry holds the provider profiles known to a run.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns the built-in profiles with overrides applied. An
// override for a built-in name replaces only the fields it sets; any other
// name defines a new provider.
func NewRegistry(overrides map[string]config.ProviderConfig) (*Registry, error) {
	profiles := builtinProfiles()
	for name, override := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == ProviderAuto {
			return nil, &parsererror.ConfigError{Field: "providers." + name, Reason: "'auto' is reserved"}
		}
		base, ok := profiles[key]
		if !ok {
			base = Profile{Name: key}
		}
		merged := mergeProfile(base, override)
		if err := merged.Validate(); err != nil {
			return nil, err
		}
		profiles[key] = merged
	}
	return &Registry{profiles: profiles}, nil
}

// Lookup returns the profile registered under name.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, &parsererror.ConfigError{
			Field:  "provider",
			Reason: fmt.Sprintf("unknown provider %q (known: %s)", name, strings.Join(r.Names(), ", ")),
		}
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergeProfile(base Profile, o config.ProviderConfig) Profile {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	list := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = append([]string(nil), v...)
		}
	}

	str(&base.Encoding, o.Encoding)
	str(&base.TimeColumn, o.TimeColumn)
	str(&base.CounterpartyColumn, o.CounterpartyColumn)
	list(&base.DescriptionColumns, o.DescriptionColumns)
	if o.AmountColumn != "" {
		base.AmountColumn = o.AmountColumn
		base.IncomeAmountColumn, base.ExpenseAmountColumn = "", ""
	}
	if o.IncomeAmountColumn != "" || o.ExpenseAmountColumn != "" {
		base.AmountColumn = ""
		str(&base.IncomeAmountColumn, o.IncomeAmountColumn)
		str(&base.ExpenseAmountColumn, o.ExpenseAmountColumn)
	}
	str(&base.DirectionColumn, o.DirectionColumn)
	str(&base.StatusColumn, o.StatusColumn)
	str(&base.TypeColumn, o.TypeColumn)
	list(&base.DateLayouts, o.DateLayouts)
	list(&base.IncomeMarkers, o.IncomeMarkers)
	list(&base.ExpenseMarkers, o.ExpenseMarkers)
	list(&base.NeutralMarkers, o.NeutralMarkers)
	list(&base.CompletedStatuses, o.CompletedStatuses)
	list(&base.ExcludedMarkers, o.ExcludedMarkers)
	return base
}
