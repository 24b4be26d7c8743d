package action

import (
	"context"
	"testing"

	"github.com/go-rod/rod"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func TestRegistryLookupFindsDefaultHandler(t *testing.T) {
	r := NewRegistry()
	if _, err := r.lookup(models.ActionNavigate); err != nil {
		t.Fatalf("lookup(navigate) = %v, want a registered handler", err)
	}
}

func TestRegistryLookupUnknownTypeReturnsNotSupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.lookup("bogus")
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindNotSupported {
		t.Fatalf("lookup(bogus) = %v, want NOT_SUPPORTED", err)
	}
}

func TestRegistryRegisterOverridesHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(models.ActionNavigate, func(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
		called = true
		return nil, nil
	})

	h, err := r.lookup(models.ActionNavigate)
	if err != nil {
		t.Fatalf("lookup after Register: %v", err)
	}
	if _, err := h(context.Background(), models.Action{}, nil); err != nil {
		t.Fatalf("handler call: %v", err)
	}
	if !called {
		t.Fatal("registered handler was not invoked")
	}
}

func TestRegistryUnregisterRemovesHandler(t *testing.T) {
	r := NewRegistry()
	r.Unregister(models.ActionNavigate)

	_, err := r.lookup(models.ActionNavigate)
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindNotSupported {
		t.Fatalf("lookup(navigate) after Unregister = %v, want NOT_SUPPORTED", err)
	}
}
