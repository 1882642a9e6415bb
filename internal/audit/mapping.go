package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP method and route template.
type ActionResource struct {
	Action   string
	Resource string
}

// Route overrides for endpoints whose verb does not follow from the method.
var routeOverrides = map[string]ActionResource{
	"POST /api/send-otp":                   {Action: "send_otp", Resource: "otp"},
	"POST /api/verify-otp":                 {Action: "verify_otp", Resource: "otp"},
	"POST /api/login-logs/clear":           {Action: "archive", Resource: "login_log"},
	"GET /api/applications/:id/assessment": {Action: "assess", Resource: "application"},
	"GET /dev/otp":                         {Action: "peek", Resource: "otp"},
}

// ParseRoute returns action and resource for a gin route template (e.g. GET /api/applications/:id).
// Resource is the first path segment after /api, singular, with dashes as underscores.
// Action is get or list for GET (get when the route ends in a parameter), create, update, or delete.
func ParseRoute(method, route string) ActionResource {
	if ar, ok := routeOverrides[method+" "+route]; ok {
		return ar
	}
	if route == "" {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) > 0 && segments[0] == "api" {
		segments = segments[1:]
	}
	if len(segments) == 0 || segments[0] == "" || isParam(segments[0]) {
		return ActionResource{Action: methodToAction(method, false), Resource: "unknown"}
	}
	resource := pathToResource(segments[0])
	// /load-items/:app_id addresses the items of an application, not a single item.
	byID := segments[len(segments)-1] == ":id"
	return ActionResource{Action: methodToAction(method, byID), Resource: resource}
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*")
}

func pathToResource(seg string) string {
	// applications -> application, load-items -> load_item
	s := strings.ReplaceAll(seg, "-", "_")
	s = strings.TrimSuffix(s, "s")
	if s == "" {
		return "unknown"
	}
	return s
}

func methodToAction(method string, byID bool) string {
	switch method {
	case http.MethodGet:
		if byID {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
