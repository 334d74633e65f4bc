package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Store Usage Errors (E101-E119)
	// ============================================

	"E101": {
		Category:   CategoryUsage,
		Message:    "Store initialised from a view",
		Detail:     "The initial value handed to the store is a live view or node taken from another store. Stores must own their values.",
		Suggestion: "Pass the plain value, e.g. node.Peek(), instead of the node or its view.",
	},
	"E102": {
		Category:   CategoryUsage,
		Message:    "Value set to a view",
		Detail:     "The value being written is a live view or node taken from a store. Writing it would alias two locations of state.",
		Suggestion: "Write a plain value, e.g. other.Peek(), instead of the view.",
	},
	"E103": {
		Category:   CategoryAsync,
		Message:    "Read while asynchronous root is pending",
		Detail:     "The root value is still waiting for an asynchronous result. There is no value to read yet.",
		Suggestion: "Check node.Promised() before reading, or wait for the store to notify.",
	},
	"E104": {
		Category:   CategoryAsync,
		Message:    "Set while asynchronous root is pending",
		Detail:     "The root value is waiting for an asynchronous result and cannot be overwritten by a concrete value mid-flight.",
		Suggestion: "Set a new asynchronous value to supersede the pending one, or wait until it settles.",
	},
	"E105": {
		Category:   CategoryAsync,
		Message:    "Nested value set to an asynchronous value",
		Detail:     "Only the root of a store may hold an asynchronous value.",
		Suggestion: "Resolve the value first and set the result.",
	},
	"E106": {
		Category:   CategoryLifecycle,
		Message:    "Set on a destroyed store",
		Detail:     "The store has been destroyed and no longer accepts writes.",
		Suggestion: "Resurrect the store or create a new one.",
	},
	"E107": {
		Category:   CategoryUsage,
		Message:    "Path does not address a container",
		Detail:     "A nested path was written or navigated through a value that is neither an object nor an array.",
	},
	"E108": {
		Category:   CategoryView,
		Message:    "View serialised to JSON",
		Detail:     "Serialising a view would read every nested value and subscribe to all of them.",
		Suggestion: "Serialise node.GetWith(ReadOptions{NoProxy: true}) or node.Peek() instead.",
	},
	"E109": {
		Category:   CategoryView,
		Message:    "Node serialised to JSON",
		Detail:     "A tracking node is not a value and cannot be serialised.",
		Suggestion: "Serialise node.Peek() instead.",
	},
	"E110": {
		Category:   CategoryUsage,
		Message:    "Function property read",
		Detail:     "The value at this path is a function. Methods of custom types cannot be tracked.",
		Suggestion: "Read the owning object with NoProxy and call the method on the plain value.",
	},
	"E111": {
		Category: CategoryUsage,
		Message:  "Invalid path",
		Detail:   "A path segment could not be parsed or has an unsupported key type.",
	},
	"E112": {
		Category:   CategoryUsage,
		Message:    "Array index out of range",
		Detail:     "An insert addressed an array index too far past its end. Arrays grow by at most 65536 padding elements per write.",
		Suggestion: "Append at the array's length, or merge a list to append several elements.",
	},

	// ============================================
	// View Errors (E201-E219)
	// ============================================

	"E201": {
		Category:   CategoryView,
		Message:    "Property set through a view",
		Detail:     "Views are read-only. All mutation goes through the store.",
		Suggestion: "Use node.Child(key).Set(value) or node.Merge(...).",
	},
	"E202": {
		Category:   CategoryView,
		Message:    "Property deleted through a view",
		Detail:     "Views are read-only. Deletion goes through the store.",
		Suggestion: "Use node.Child(key).Delete().",
	},
	"E203": {
		Category:   CategoryView,
		Message:    "Structure changed through a view",
		Detail:     "Appending to, reordering, or replacing the backing value of a view is not allowed.",
		Suggestion: "Use node.Merge(...) to append.",
	},

	// ============================================
	// Extension Errors (E301-E319)
	// ============================================

	"E301": {
		Category:   CategoryExtension,
		Message:    "Unknown extension method",
		Detail:     "No extension registered with the store contributes a method with this name.",
		Suggestion: "Register the extension with state.WithExtensions(...).",
	},
	"E302": {
		Category: CategoryExtension,
		Message:  "Write vetoed by extension",
		Detail:   "An extension rejected the write in its preset hook.",
	},

	// ============================================
	// Tooling Errors (E401-E449)
	// ============================================

	"E401": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The trackstate.json file could not be parsed or failed validation.",
	},
	"E402": {
		Category: CategorySource,
		Message:  "Document could not be loaded",
		Detail:   "The document source could not be read or decoded.",
	},
	"E403": {
		Category: CategorySource,
		Message:  "Unsupported document format",
		Detail:   "Documents must be .json, .yaml, .yml or .toml.",
	},
	"E404": {
		Category: CategoryCLI,
		Message:  "Invalid replay script",
		Detail:   "The replay script could not be parsed or contains an unknown operation.",
	},
	"E405": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create trackstate.json or pass --config.",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
