package coupon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/murillocortez/klyver-engine/internal/domain"
)

// memRepo is an in-memory coupon repository keyed by code.
type memRepo struct {
	mu      sync.Mutex
	byCode  map[string]*domain.Coupon
	failFor int // number of inserts that report a duplicate before accepting
}

func newMemRepo() *memRepo {
	return &memRepo{byCode: make(map[string]*domain.Coupon)}
}

func (m *memRepo) Insert(_ context.Context, c *domain.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor > 0 {
		m.failFor--
		return ErrDuplicateCode
	}
	if _, ok := m.byCode[c.Code]; ok {
		return ErrDuplicateCode
	}
	cp := *c
	m.byCode[cp.Code] = &cp
	return nil
}

func TestIssue(t *testing.T) {
	repo := newMemRepo()
	issuer := NewIssuer(repo)
	issuedAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issuedAt }

	c, err := issuer.Issue(context.Background(), "MARIA-3F2A9C", 15, "cust-1", 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c.Code != "MARIA-3F2A9C" {
		t.Errorf("code = %s", c.Code)
	}
	if c.UsageLimit != 1 || c.UsageCount != 0 {
		t.Errorf("usage limit/count = %d/%d, want 1/0", c.UsageLimit, c.UsageCount)
	}
	if c.CustomerID != "cust-1" {
		t.Errorf("customer id = %q, must never be empty", c.CustomerID)
	}
	if want := issuedAt.AddDate(0, 0, 7); !c.EndDate.Equal(want) {
		t.Errorf("end date = %v, want exactly issuedAt+7d (%v)", c.EndDate, want)
	}
	if !c.StartDate.Equal(issuedAt) {
		t.Errorf("start date = %v, want %v", c.StartDate, issuedAt)
	}
	if c.DiscountType != domain.DiscountPercentage || c.DiscountValue != 15 {
		t.Errorf("discount = %s/%v", c.DiscountType, c.DiscountValue)
	}
}

func TestIssueCollisionRetry(t *testing.T) {
	repo := newMemRepo()
	repo.failFor = 2 // base code and first retry collide
	issuer := NewIssuer(repo)

	c, err := issuer.Issue(context.Background(), "VIP-AB12CD34", 10, "cust-2", 30)
	if err != nil {
		t.Fatalf("issue after collisions: %v", err)
	}
	if !strings.HasPrefix(c.Code, "VIP-AB12CD34-") {
		t.Errorf("retried code %s should carry a disambiguating suffix", c.Code)
	}
	if len(c.Code) > 20 {
		t.Errorf("code %s exceeds bounded length", c.Code)
	}
}

func TestIssueCollisionExhausted(t *testing.T) {
	repo := newMemRepo()
	repo.failFor = 3 // every attempt collides
	issuer := NewIssuer(repo)

	_, err := issuer.Issue(context.Background(), "VIP-AB12CD34", 10, "cust-3", 30)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIssueValidation(t *testing.T) {
	issuer := NewIssuer(newMemRepo())

	if _, err := issuer.Issue(context.Background(), "X", 10, "", 7); err == nil {
		t.Error("expected error for empty customer id")
	}
	if _, err := issuer.Issue(context.Background(), "X", 10, "cust-1", 0); err == nil {
		t.Error("expected error for zero validity days")
	}
}

func TestBirthdayCode(t *testing.T) {
	code := BirthdayCode("Maria", "3f2a9c1e-0000-0000-0000-000000000000")
	if code != "MARIA-3F2A9C" {
		t.Errorf("BirthdayCode = %s", code)
	}

	// Deterministic for the same inputs
	if again := BirthdayCode("Maria", "3f2a9c1e-0000-0000-0000-000000000000"); again != code {
		t.Errorf("BirthdayCode not deterministic: %s vs %s", code, again)
	}

	// Long names are bounded
	long := BirthdayCode("Maximiliano Alexandre", "3f2a9c1e-0000-0000-0000-000000000000")
	if len(long) > 20 {
		t.Errorf("code %s exceeds bounded length", long)
	}
	if !strings.HasPrefix(long, "MAXIMILI") {
		t.Errorf("code %s should start with the truncated first name", long)
	}

	// Empty or non-alphanumeric names fall back to a generic prefix
	if code := BirthdayCode("", "3f2a9c1e"); !strings.HasPrefix(code, "BDAY-") {
		t.Errorf("fallback code = %s", code)
	}
}

func TestVipCode(t *testing.T) {
	code := VipCode("3f2a9c1e-0000-0000-0000-000000000000")
	if code != "VIP-3F2A9C1E" {
		t.Errorf("VipCode = %s", code)
	}
}
