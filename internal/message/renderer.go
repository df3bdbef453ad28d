// Package message renders campaign message templates using the Liquid
// template language. Campaign templates use {{name}} for personalization;
// missing variables render empty rather than failing a pass.
package message

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Renderer renders Liquid templates with parse caching.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with domain-specific filters registered.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// Default value filter: {{ name | default: "cliente" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return &Renderer{engine: engine}
}

// Render substitutes bindings into the template. Unknown variables render
// as empty strings (lax mode: a typo in a template must not block a pass).
func (r *Renderer) Render(template string, data map[string]any) (string, error) {
	tpl, err := r.parse(template)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := tpl.RenderString(data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func (r *Renderer) parse(source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	r.cache.Store(source, tpl)
	return tpl, nil
}

// AppendCoupon appends the coupon code and discount percentage to a rendered
// message, the way reward campaigns deliver their codes.
func AppendCoupon(msg, code string, discountPercent float64) string {
	pct := strconv.FormatFloat(discountPercent, 'f', -1, 64)
	return fmt.Sprintf("%s\n\nUse o cupom %s para %s%% de desconto!", msg, code, pct)
}

// AppendCouponCode appends just the coupon code, for retried notifications
// where the discount value lives on the coupon row.
func AppendCouponCode(msg, code string) string {
	return fmt.Sprintf("%s\n\nSeu cupom: %s", msg, code)
}
