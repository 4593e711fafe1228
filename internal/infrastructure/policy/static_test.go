package policy

import (
	"context"
	"testing"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

func TestStaticDeniesWithoutCredentials(t *testing.T) {
	p := NewStatic(false, Unlimited)

	d, err := p.Decide(context.Background(), nil)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.CloudAllowed() || d.Reason() != domain.ReasonNotSignedIn {
		t.Fatalf("expected not_signed_in, got %+v", d)
	}
}

func TestStaticUnlimited(t *testing.T) {
	p := NewStatic(true, Unlimited)

	for i := 0; i < 3; i++ {
		d, err := p.Decide(context.Background(), nil)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if !d.CloudAllowed() || d.Remaining() != Unlimited {
			t.Fatalf("expected unlimited cloud access, got %+v", d)
		}
	}
}

func TestStaticQuotaExhaustion(t *testing.T) {
	p := NewStatic(true, 2)

	for want := 1; want >= 0; want-- {
		d, err := p.Decide(context.Background(), nil)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if !d.CloudAllowed() || d.Remaining() != want {
			t.Fatalf("expected remaining=%d, got %+v", want, d)
		}
	}

	d, err := p.Decide(context.Background(), nil)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.CloudAllowed() || d.Reason() != domain.ReasonQuotaExhausted {
		t.Fatalf("expected quota_exhausted, got %+v", d)
	}
}
