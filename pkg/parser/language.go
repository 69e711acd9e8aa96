package parser

import (
	"path/filepath"
	"strings"
)

// Language is the language tag of a source file, derived from its
// extension.
type Language int

const (
	// LanguageJavaScript covers .js, .mjs and .cjs files.
	LanguageJavaScript Language = iota
	// LanguageJSX covers .jsx files.
	LanguageJSX
	// LanguageTypeScript covers .ts, .mts and .cts files. No JSX.
	LanguageTypeScript
	// LanguageTSX covers .tsx files.
	LanguageTSX
	// LanguageUnknown represents an unsupported extension.
	LanguageUnknown
)

// String returns the persisted tag of the language.
func (l Language) String() string {
	switch l {
	case LanguageJavaScript:
		return "js"
	case LanguageJSX:
		return "jsx"
	case LanguageTypeScript:
		return "ts"
	case LanguageTSX:
		return "tsx"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the language tag from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".js", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".jsx":
		return LanguageJSX
	case ".ts", ".mts", ".cts":
		return LanguageTypeScript
	case ".tsx":
		return LanguageTSX
	default:
		return LanguageUnknown
	}
}

// IsSupportedFile reports whether the path has an allowlisted extension.
func IsSupportedFile(filePath string) bool {
	return DetectLanguage(filePath) != LanguageUnknown
}
