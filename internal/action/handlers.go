package action

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// Handler runs one action against a live page and returns the JSON-able
// result data. Handlers never retry or classify errors themselves — that
// is the executor's job based on the error's message.
type Handler func(ctx context.Context, a models.Action, page *rod.Page) (any, error)

func defaultHandlers() map[models.ActionType]Handler {
	return map[models.ActionType]Handler{
		models.ActionNavigate:     handleNavigate,
		models.ActionGoBack:       handleGoBack,
		models.ActionGoForward:    handleGoForward,
		models.ActionRefresh:      handleRefresh,
		models.ActionClick:        handleClick,
		models.ActionTypeText:     handleType,
		models.ActionSelect:       handleSelect,
		models.ActionKeyboard:     handleKeyboard,
		models.ActionMouse:        handleMouse,
		models.ActionScreenshot:   handleScreenshot,
		models.ActionPDF:          handlePDF,
		models.ActionWait:         handleWait,
		models.ActionScroll:       handleScroll,
		models.ActionEvaluate:     handleEvaluate,
		models.ActionInjectScript: handleInjectScript,
		models.ActionInjectCSS:    handleInjectCSS,
		models.ActionUpload:       handleUpload,
		models.ActionCookie:       handleCookie,
		models.ActionSetViewport:  handleSetViewport,
	}
}

func handleNavigate(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).Navigate(a.URL); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNavigationFailed, "navigation failed", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNavigationFailed, "waiting for navigation failed", err)
	}
	return map[string]string{"url": a.URL}, nil
}

func handleGoBack(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).NavigateBack(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNavigationFailed, "navigate back failed", err)
	}
	return nil, nil
}

func handleGoForward(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).NavigateForward(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNavigationFailed, "navigate forward failed", err)
	}
	return nil, nil
}

func handleRefresh(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).Reload(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindNavigationFailed, "reload failed", err)
	}
	return nil, nil
}

func handleClick(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	el, err := page.Context(ctx).Element(a.Selector)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindElementNotFound, "element not found for click", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "click failed", err)
	}
	return nil, nil
}

func handleType(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	el, err := page.Context(ctx).Element(a.Selector)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindElementNotFound, "element not found for type", err)
	}
	if err := el.Input(a.Text); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "type failed", err)
	}
	return nil, nil
}

func handleSelect(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	el, err := page.Context(ctx).Element(a.Selector)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindElementNotFound, "element not found for select", err)
	}
	if err := el.Select(a.Values, true, rod.SelectorTypeText); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "select failed", err)
	}
	return nil, nil
}

func handleKeyboard(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	key, ok := keyByName[a.Key]
	if !ok {
		return nil, apierrors.ValidationFailed("unknown key: " + a.Key)
	}
	if err := page.Context(ctx).Keyboard.Type(key); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "key press failed", err)
	}
	return nil, nil
}

func handleMouse(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	m := page.Context(ctx).Mouse
	if err := m.MoveTo(a.X, a.Y); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "mouse move failed", err)
	}
	if err := m.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "mouse click failed", err)
	}
	return nil, nil
}

func handleScreenshot(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	data, err := page.Context(ctx).Screenshot(a.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "screenshot failed", err)
	}
	return map[string]string{"image": base64.StdEncoding.EncodeToString(data), "format": "png"}, nil
}

func handlePDF(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	reader, err := page.Context(ctx).PDF(&proto.PagePrintToPDF{})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "pdf export failed", err)
	}
	buf := make([]byte, 0)
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return map[string]string{"pdf": base64.StdEncoding.EncodeToString(buf)}, nil
}

func handleWait(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	switch a.WaitMode {
	case models.WaitSelector:
		if _, err := page.Context(ctx).Element(a.Selector); err != nil {
			return nil, apierrors.Wrap(apierrors.KindTimeout, "waiting for selector timed out", err)
		}
	case models.WaitNavigation:
		page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)()
	case models.WaitTimeout:
		timeout := time.Second
		if a.Timeout != nil {
			timeout = *a.Timeout
		}
		if err := page.Context(ctx).WaitIdle(timeout); err != nil {
			return nil, apierrors.Wrap(apierrors.KindTimeout, "wait timed out", err)
		}
	case models.WaitFunction:
		if _, err := page.Context(ctx).Eval(a.Function); err != nil {
			return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "wait function failed", err)
		}
	}
	return nil, nil
}

func handleScroll(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if a.Selector != "" {
		el, err := page.Context(ctx).Element(a.Selector)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindElementNotFound, "element not found for scroll", err)
		}
		if err := el.ScrollIntoView(); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "scroll failed", err)
		}
		return nil, nil
	}
	if err := page.Context(ctx).Mouse.Scroll(a.X, a.Y, 1); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInteractionFailed, "scroll failed", err)
	}
	return nil, nil
}

func handleEvaluate(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	obj, err := page.Context(ctx).Eval(a.Script)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "evaluate failed", err)
	}
	return obj.Value, nil
}

func handleInjectScript(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).AddScriptTag("", a.Script); err != nil {
		return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "script injection failed", err)
	}
	return nil, nil
}

func handleInjectCSS(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).AddStyleTag("", a.CSS); err != nil {
		return nil, apierrors.Wrap(apierrors.KindEvaluationFailed, "css injection failed", err)
	}
	return nil, nil
}

func handleUpload(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	el, err := page.Context(ctx).Element(a.Selector)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindElementNotFound, "element not found for upload", err)
	}
	if err := el.SetFiles(a.FilePaths); err != nil {
		return nil, apierrors.New(apierrors.KindFileUploadFailed, "file upload failed").WithDetail(err.Error())
	}
	return nil, nil
}

func handleCookie(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	switch a.CookieOp {
	case models.CookieGet:
		cookies, err := page.Context(ctx).Cookies(nil)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "get cookies failed", err)
		}
		return cookies, nil
	case models.CookieSet:
		params := make([]*proto.NetworkCookieParam, 0, len(a.Cookies))
		for _, c := range a.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
			})
		}
		if err := page.Context(ctx).SetCookies(params); err != nil {
			return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "set cookies failed", err)
		}
		return nil, nil
	case models.CookieDelete:
		if err := (proto.NetworkDeleteCookies{Name: cookieNameOrEmpty(a.Cookies)}).Call(page.Context(ctx)); err != nil {
			return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "delete cookie failed", err)
		}
		return nil, nil
	case models.CookieClear:
		if a.ClearData != nil && a.ClearData.Cookies {
			if err := (proto.NetworkClearBrowserCookies{}).Call(page.Context(ctx)); err != nil {
				return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "clear cookies failed", err)
			}
		}
		if a.ClearData != nil && a.ClearData.Cache {
			if err := (proto.NetworkClearBrowserCache{}).Call(page.Context(ctx)); err != nil {
				return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "clear cache failed", err)
			}
		}
		return nil, nil
	default:
		return nil, apierrors.ValidationFailed("unknown cookieOp")
	}
}

func handleSetViewport(ctx context.Context, a models.Action, page *rod.Page) (any, error) {
	if err := page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             a.Viewport.Width,
		Height:            a.Viewport.Height,
		Mobile:            a.Viewport.Mobile,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, apierrors.Wrap(apierrors.KindExecutionFailed, "set viewport failed", err)
	}
	return nil, nil
}

func cookieNameOrEmpty(cookies []models.CookieSpec) string {
	if len(cookies) == 0 {
		return ""
	}
	return cookies[0].Name
}

var keyByName = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"space":      input.Space,
}

