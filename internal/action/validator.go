package action

import (
	"strings"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// scriptDenyPatterns are substrings that mark an evaluate/injectScript body
// as unsafe to run inside the target page.
var scriptDenyPatterns = []string{
	"eval(",
	"new function",
	"settimeout(",
	"setinterval(",
	"import(",
	"require(",
	"process.",
	"global.",
	"location.href",
	"location.replace",
	"location.assign",
	"xmlhttprequest",
	"fetch(",
	"__proto__",
	"constructor(",
}

// scriptAdvisoryPatterns surface as warnings only; they do not block the action.
var scriptAdvisoryPatterns = []string{
	"localstorage",
	"xmlhttprequest",
	"websocket",
	"window.opener",
}

var cssDenyPatterns = []string{
	"javascript:",
	"expression(",
	"behavior:",
	"-moz-binding",
}

const maxScriptBytes = 50_000
const maxCSSBytes = 100_000

// ValidateScript applies the deny-list, size, and brace-balance checks to an
// evaluate/injectScript body. A non-nil error is always VALIDATION_FAILED.
func ValidateScript(src string) (warnings []string, err error) {
	if len(src) > maxScriptBytes {
		return nil, apierrors.ValidationFailed("script exceeds maximum size").WithCode("SCRIPT_TOO_LARGE")
	}

	lower := strings.ToLower(src)
	for _, pattern := range scriptDenyPatterns {
		if strings.Contains(lower, pattern) {
			return nil, apierrors.ValidationFailed("script matched a denied pattern: " + pattern).WithCode("XSS_PATTERN_DETECTED")
		}
	}

	if strings.Count(src, "{") != strings.Count(src, "}") {
		return nil, apierrors.ValidationFailed("script has unbalanced braces").WithCode("MALFORMED_SCRIPT")
	}

	for _, pattern := range scriptAdvisoryPatterns {
		if strings.Contains(lower, pattern) {
			warnings = append(warnings, "script references "+pattern)
		}
	}
	return warnings, nil
}

// ValidateCSS applies the deny-list and size checks to an injectCSS body.
func ValidateCSS(src string) error {
	if len(src) > maxCSSBytes {
		return apierrors.ValidationFailed("stylesheet exceeds maximum size").WithCode("CSS_TOO_LARGE")
	}

	lower := strings.ToLower(src)
	for _, pattern := range cssDenyPatterns {
		if strings.Contains(lower, pattern) {
			return apierrors.ValidationFailed("stylesheet matched a denied pattern: " + pattern).WithCode("XSS_PATTERN_DETECTED")
		}
	}
	if strings.Contains(lower, "@import") && strings.Contains(lower, "data:") && strings.Contains(lower, "script") {
		return apierrors.ValidationFailed("stylesheet imports a script data URI").WithCode("XSS_PATTERN_DETECTED")
	}
	return nil
}

// Validate runs type-specific schema validation on an action, including the
// script/CSS security checks. It never touches the network or the page.
func Validate(a models.Action) ([]string, error) {
	switch a.Type {
	case models.ActionNavigate, models.ActionGoBack, models.ActionGoForward, models.ActionRefresh:
		if a.Type == models.ActionNavigate && a.URL == "" {
			return nil, apierrors.ValidationFailed("navigate requires url")
		}
	case models.ActionClick, models.ActionTypeText, models.ActionSelect:
		if a.Selector == "" {
			return nil, apierrors.ValidationFailed(string(a.Type) + " requires selector")
		}
	case models.ActionKeyboard:
		if a.Key == "" {
			return nil, apierrors.ValidationFailed("keyboard requires key")
		}
	case models.ActionScreenshot, models.ActionPDF, models.ActionScroll:
		// no required fields beyond pageId
	case models.ActionWait:
		switch a.WaitMode {
		case models.WaitSelector:
			if a.Selector == "" {
				return nil, apierrors.ValidationFailed("wait(selector) requires selector")
			}
		case models.WaitFunction:
			if a.Function == "" {
				return nil, apierrors.ValidationFailed("wait(function) requires function")
			}
			return ValidateScript(a.Function)
		case models.WaitNavigation, models.WaitTimeout:
		default:
			return nil, apierrors.ValidationFailed("unknown waitMode").WithCode("UNSUPPORTED_ACTION")
		}
	case models.ActionEvaluate, models.ActionInjectScript:
		if a.Script == "" {
			return nil, apierrors.ValidationFailed(string(a.Type) + " requires script")
		}
		return ValidateScript(a.Script)
	case models.ActionInjectCSS:
		if a.CSS == "" {
			return nil, apierrors.ValidationFailed("injectCSS requires css")
		}
		return nil, ValidateCSS(a.CSS)
	case models.ActionUpload:
		if a.Selector == "" || len(a.FilePaths) == 0 {
			return nil, apierrors.ValidationFailed("upload requires selector and filePaths")
		}
	case models.ActionCookie:
		switch a.CookieOp {
		case models.CookieSet:
			if len(a.Cookies) == 0 {
				return nil, apierrors.ValidationFailed("cookie(set) requires cookies")
			}
		case models.CookieGet, models.CookieDelete, models.CookieClear:
		default:
			return nil, apierrors.ValidationFailed("unknown cookieOp").WithCode("UNSUPPORTED_ACTION")
		}
	case models.ActionSetViewport:
		if a.Viewport == nil {
			return nil, apierrors.ValidationFailed("setViewport requires viewport")
		}
	case models.ActionMouse:
		// x/y default to zero value, both valid
	default:
		return nil, apierrors.ValidationFailed("unsupported action type: "+string(a.Type)).WithCode("UNSUPPORTED_ACTION")
	}
	return nil, nil
}
