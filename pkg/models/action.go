package models

import "time"

// ActionType is the tag of the Action union. The canonical set below ships
// with the module; third parties may register additional handlers under
// new tags without touching this list.
type ActionType string

const (
	ActionNavigate     ActionType = "navigate"
	ActionClick        ActionType = "click"
	ActionTypeText     ActionType = "type"
	ActionSelect       ActionType = "select"
	ActionKeyboard     ActionType = "keyboard"
	ActionMouse        ActionType = "mouse"
	ActionScreenshot   ActionType = "screenshot"
	ActionPDF          ActionType = "pdf"
	ActionWait         ActionType = "wait"
	ActionScroll       ActionType = "scroll"
	ActionEvaluate     ActionType = "evaluate"
	ActionInjectScript ActionType = "injectScript"
	ActionInjectCSS    ActionType = "injectCSS"
	ActionUpload       ActionType = "upload"
	ActionCookie       ActionType = "cookie"
	ActionGoBack       ActionType = "goBack"
	ActionGoForward    ActionType = "goForward"
	ActionRefresh      ActionType = "refresh"
	ActionSetViewport  ActionType = "setViewport"
)

// WaitMode distinguishes the four variants of the "wait" action.
type WaitMode string

const (
	WaitSelector   WaitMode = "selector"
	WaitNavigation WaitMode = "navigation"
	WaitTimeout    WaitMode = "timeout"
	WaitFunction   WaitMode = "function"
)

// CookieOp distinguishes the four variants of the "cookie" action.
type CookieOp string

const (
	CookieSet    CookieOp = "set"
	CookieGet    CookieOp = "get"
	CookieDelete CookieOp = "delete"
	CookieClear  CookieOp = "clear"
)

// Action is the tagged-union record dispatched by the executor. Only the
// fields relevant to Type are expected to be populated; handlers validate
// their own subset.
type Action struct {
	Type      ActionType     `json:"type"`
	PageID    string         `json:"pageId"`
	Timeout   *time.Duration `json:"timeout,omitempty"`
	RequestID string         `json:"requestId,omitempty"`

	// navigate / goBack / goForward / refresh
	URL string `json:"url,omitempty"`

	// click / type / select / wait(selector) / scroll / upload
	Selector string `json:"selector,omitempty"`

	// type
	Text string `json:"text,omitempty"`

	// select
	Values []string `json:"values,omitempty"`

	// keyboard
	Key string `json:"key,omitempty"`

	// mouse
	X, Y float64 `json:"x,omitempty"`

	// screenshot
	FullPage bool `json:"fullPage,omitempty"`

	// wait
	WaitMode WaitMode `json:"waitMode,omitempty"`
	Function string   `json:"function,omitempty"`

	// evaluate / injectScript
	Script string `json:"script,omitempty"`

	// injectCSS
	CSS string `json:"css,omitempty"`

	// upload
	FilePaths []string `json:"filePaths,omitempty"`

	// cookie
	CookieOp   CookieOp          `json:"cookieOp,omitempty"`
	Cookies    []CookieSpec      `json:"cookies,omitempty"`
	ClearData  *ClearDataOptions `json:"clearData,omitempty"`

	// setViewport
	Viewport *Viewport `json:"viewport,omitempty"`
}

// ActionResult is the outcome of one executed action. Exactly one of Data
// or Error is populated.
type ActionResult struct {
	Success    bool                   `json:"success"`
	ActionType ActionType             `json:"actionType"`
	Data       any                    `json:"data,omitempty"`
	Error      *ActionError           `json:"error,omitempty"`
	Duration   time.Duration          `json:"duration"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ActionError is the wire-safe projection of an apierrors.APIError, used
// so pkg/models never imports the error package and keeps models acyclic.
type ActionError struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// BatchLimit bounds how many actions may be submitted in one execute call.
const BatchLimit = 100
