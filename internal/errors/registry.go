package errors

import "sort"

// Template defines a registered error.
type Template struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Unsupported configuration format",
		Detail:   "Configuration files must end in .json, .toml, .yaml or .yml.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid hash type",
		Detail:   "hashType must name a built-in path coder.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid query key",
		Detail:   "queryKey must be a non-empty name made of letters, digits, '_' or '-'.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid state API mode",
		Detail:   "stateApi must be one of auto, on or off.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid storage backend",
		Detail:   "storage.backend must be memory or s3.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Missing S3 bucket",
		Detail:   "The s3 storage backend needs storage.s3.bucket.",
	},
	"E107": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "logLevel must be one of debug, info, warn or error.",
	},
	"E108": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations use Go syntax, for example 30m or 24h, and must not be negative.",
	},
	"E109": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No hashhistory.json, hashhistory.toml or hashhistory.yaml was found.",
	},

	// ============================================
	// Storage Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryStorage,
		Message:  "State storage unavailable",
		Detail:   "The persisted state backend could not be reached.",
	},
	"E201": {
		Category: CategoryStorage,
		Message:  "State write failed",
		Detail:   "Saving a location's state failed; the fragment was left unchanged.",
	},
	"E202": {
		Category: CategoryStorage,
		Message:  "State read failed",
		Detail:   "Reading a location's persisted state failed.",
	},

	// ============================================
	// Coder Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryCoder,
		Message:  "Coder script not found",
		Detail:   "The file named by coderScript does not exist.",
	},
	"E301": {
		Category: CategoryCoder,
		Message:  "Coder script failed to load",
		Detail:   "The Lua coder script has a syntax or runtime error.",
	},
	"E302": {
		Category: CategoryCoder,
		Message:  "Coder script incomplete",
		Detail:   "Coder scripts must define global functions encode(path) and decode(path).",
	},

	// ============================================
	// Bridge Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryBridge,
		Message:  "Bridge server failed",
		Detail:   "The websocket bridge could not listen on its address.",
	},
	"E401": {
		Category: CategoryBridge,
		Message:  "Invalid websocket path",
		Detail:   "server.wsPath must start with '/' and must not be one of /, /client.js, /healthz or /metrics.",
	},

	// ============================================
	// CLI Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Invalid simulation script",
		Detail:   "A simulation script line could not be parsed.",
	},
	"E501": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command argument is malformed.",
	},
}

// Codes returns all registered codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a template.
func Register(code string, template Template) {
	registry[code] = template
}
