package action

import (
	"strings"
	"testing"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func TestValidateScriptRejectsDeniedPattern(t *testing.T) {
	_, err := ValidateScript(`eval("1+1")`)
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "XSS_PATTERN_DETECTED" {
		t.Fatalf("ValidateScript(eval) = %v, want XSS_PATTERN_DETECTED", err)
	}
}

func TestValidateScriptRejectsTooLarge(t *testing.T) {
	_, err := ValidateScript(strings.Repeat("a", maxScriptBytes+1))
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "SCRIPT_TOO_LARGE" {
		t.Fatalf("ValidateScript(oversized) = %v, want SCRIPT_TOO_LARGE", err)
	}
}

func TestValidateScriptRejectsUnbalancedBraces(t *testing.T) {
	_, err := ValidateScript("function() { return 1;")
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "MALFORMED_SCRIPT" {
		t.Fatalf("ValidateScript(unbalanced) = %v, want MALFORMED_SCRIPT", err)
	}
}

func TestValidateScriptSurfacesAdvisoryWarnings(t *testing.T) {
	warnings, err := ValidateScript("localStorage.getItem('x')")
	if err != nil {
		t.Fatalf("ValidateScript(localStorage) returned error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one advisory", warnings)
	}
}

func TestValidateScriptAllowsBenignScript(t *testing.T) {
	warnings, err := ValidateScript("document.title")
	if err != nil {
		t.Fatalf("ValidateScript(benign) returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
}

func TestValidateCSSRejectsDeniedPattern(t *testing.T) {
	err := ValidateCSS("body { behavior: url(evil.htc); }")
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "XSS_PATTERN_DETECTED" {
		t.Fatalf("ValidateCSS(behavior) = %v, want XSS_PATTERN_DETECTED", err)
	}
}

func TestValidateCSSRejectsScriptDataURIImport(t *testing.T) {
	err := ValidateCSS(`@import url("data:text/javascript;base64,YWxlcnQoMSk=") script;`)
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "XSS_PATTERN_DETECTED" {
		t.Fatalf("ValidateCSS(script data uri import) = %v, want XSS_PATTERN_DETECTED", err)
	}
}

func TestValidateCSSAllowsBenignStylesheet(t *testing.T) {
	if err := ValidateCSS("body { color: red; }"); err != nil {
		t.Fatalf("ValidateCSS(benign) returned error: %v", err)
	}
}

func TestValidateNavigateRequiresURL(t *testing.T) {
	_, err := Validate(models.Action{Type: models.ActionNavigate})
	if err == nil {
		t.Fatal("Validate(navigate without url) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionNavigate, URL: "https://example.com"}); err != nil {
		t.Fatalf("Validate(navigate with url) = %v, want nil", err)
	}
}

func TestValidateClickRequiresSelector(t *testing.T) {
	_, err := Validate(models.Action{Type: models.ActionClick})
	if err == nil {
		t.Fatal("Validate(click without selector) = nil, want error")
	}
}

func TestValidateWaitModeDispatchesPerMode(t *testing.T) {
	if _, err := Validate(models.Action{Type: models.ActionWait, WaitMode: models.WaitSelector}); err == nil {
		t.Fatal("Validate(wait selector without selector) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionWait, WaitMode: models.WaitFunction}); err == nil {
		t.Fatal("Validate(wait function without function) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionWait, WaitMode: models.WaitFunction, Function: "eval('x')"}); err == nil {
		t.Fatal("Validate(wait function with denied script) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionWait, WaitMode: "bogus"}); err == nil {
		t.Fatal("Validate(wait unknown mode) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionWait, WaitMode: models.WaitTimeout}); err != nil {
		t.Fatalf("Validate(wait timeout) = %v, want nil", err)
	}
}

func TestValidateCookieOpDispatchesPerOp(t *testing.T) {
	if _, err := Validate(models.Action{Type: models.ActionCookie, CookieOp: models.CookieSet}); err == nil {
		t.Fatal("Validate(cookie set without cookies) = nil, want error")
	}
	if _, err := Validate(models.Action{Type: models.ActionCookie, CookieOp: models.CookieClear}); err != nil {
		t.Fatalf("Validate(cookie clear) = %v, want nil", err)
	}
	if _, err := Validate(models.Action{Type: models.ActionCookie, CookieOp: "bogus"}); err == nil {
		t.Fatal("Validate(cookie unknown op) = nil, want error")
	}
}

func TestValidateUnsupportedActionType(t *testing.T) {
	_, err := Validate(models.Action{Type: "not-a-real-type"})
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "UNSUPPORTED_ACTION" {
		t.Fatalf("Validate(unknown type) = %v, want UNSUPPORTED_ACTION", err)
	}
}

func TestValidateSetViewportRequiresViewport(t *testing.T) {
	_, err := Validate(models.Action{Type: models.ActionSetViewport})
	if err == nil {
		t.Fatal("Validate(setViewport without viewport) = nil, want error")
	}
}
