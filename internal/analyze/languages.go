package analyze

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// langQueries bundles the four tree-sitter query strings one language
// contributes: functions, classes, imports, calls.
type langQueries struct {
	functions string
	classes   string
	imports   string
	calls     string
}

// langInfo is one entry of the per-language registry: everything the
// parser needs to turn a source file of this language into a FileAnalysis.
type langInfo struct {
	name         string
	extensions   []string
	language     func() *sitter.Language
	fnKinds      []string
	fnNameKinds  []string
	classKinds   []string
	queries      langQueries
}

var languages = []langInfo{
	{
		name:       "rust",
		extensions: []string{"rs"},
		language:   rust.GetLanguage,
		fnKinds:    []string{"function_item"},
		fnNameKinds: []string{"identifier"},
		classKinds: []string{"impl_item", "struct_item", "trait_item", "enum_item"},
		queries: langQueries{
			functions: `(function_item name: (identifier) @name)`,
			classes: `
				(impl_item type: (type_identifier) @name)
				(struct_item name: (type_identifier) @name)
				(trait_item name: (type_identifier) @name)
				(enum_item name: (type_identifier) @name)
			`,
			imports: `(use_declaration) @path`,
			calls: `
				(call_expression function: (identifier) @name)
				(call_expression function: (field_expression field: (field_identifier) @name))
				(call_expression function: (scoped_identifier) @name)
				(macro_invocation macro: (identifier) @name)
			`,
		},
	},
	{
		name:       "python",
		extensions: []string{"py", "pyi"},
		language:   python.GetLanguage,
		fnKinds:    []string{"function_definition"},
		fnNameKinds: []string{"identifier"},
		classKinds: []string{"class_definition"},
		queries: langQueries{
			functions: `(function_definition name: (identifier) @name)`,
			classes:   `(class_definition name: (identifier) @name)`,
			imports: `
				(import_statement) @path
				(import_from_statement) @path
			`,
			calls: `
				(call function: (identifier) @name)
				(call function: (attribute attribute: (identifier) @name))
				(decorator (identifier) @name)
				(decorator (attribute attribute: (identifier) @name))
			`,
		},
	},
	{
		name:       "javascript",
		extensions: []string{"js", "jsx", "mjs", "cjs"},
		language:   javascript.GetLanguage,
		fnKinds: []string{
			"function_declaration",
			"generator_function_declaration",
			"method_definition",
			"variable_declarator",
		},
		fnNameKinds: []string{"identifier", "property_identifier"},
		classKinds:  []string{"class_declaration"},
		queries: langQueries{
			functions: `
				(function_declaration name: (identifier) @name)
				(generator_function_declaration name: (identifier) @name)
				(method_definition name: (property_identifier) @name)
				(lexical_declaration
				  (variable_declarator
				    name: (identifier) @name
				    value: (arrow_function)))
			`,
			classes: `(class_declaration name: (identifier) @name)`,
			imports: `(import_statement) @path`,
			calls: `
				(call_expression function: (identifier) @name)
				(call_expression function: (member_expression property: (property_identifier) @name))
				(new_expression constructor: (identifier) @name)
			`,
		},
	},
	{
		name:       "typescript",
		extensions: []string{"ts"},
		language:   typescript.GetLanguage,
		fnKinds: []string{
			"function_declaration",
			"generator_function_declaration",
			"method_definition",
			"variable_declarator",
		},
		fnNameKinds: []string{"identifier", "property_identifier"},
		classKinds:  []string{"class_declaration", "interface_declaration"},
		queries: langQueries{
			functions: `
				(function_declaration name: (identifier) @name)
				(generator_function_declaration name: (identifier) @name)
				(method_definition name: (property_identifier) @name)
				(lexical_declaration
				  (variable_declarator
				    name: (identifier) @name
				    value: (arrow_function)))
			`,
			classes: `
				(class_declaration name: (type_identifier) @name)
				(interface_declaration name: (type_identifier) @name)
			`,
			imports: `(import_statement) @path`,
			calls: `
				(call_expression function: (identifier) @name)
				(call_expression function: (member_expression property: (property_identifier) @name))
				(new_expression constructor: (identifier) @name)
			`,
		},
	},
	{
		name:       "tsx",
		extensions: []string{"tsx"},
		language:   tsx.GetLanguage,
		fnKinds: []string{
			"function_declaration",
			"generator_function_declaration",
			"method_definition",
			"variable_declarator",
		},
		fnNameKinds: []string{"identifier", "property_identifier"},
		classKinds:  []string{"class_declaration", "interface_declaration"},
		queries: langQueries{
			functions: `
				(function_declaration name: (identifier) @name)
				(generator_function_declaration name: (identifier) @name)
				(method_definition name: (property_identifier) @name)
				(lexical_declaration
				  (variable_declarator
				    name: (identifier) @name
				    value: (arrow_function)))
			`,
			classes: `
				(class_declaration name: (type_identifier) @name)
				(interface_declaration name: (type_identifier) @name)
			`,
			imports: `(import_statement) @path`,
			calls: `
				(call_expression function: (identifier) @name)
				(call_expression function: (member_expression property: (property_identifier) @name))
				(new_expression constructor: (identifier) @name)
			`,
		},
	},
	{
		name:        "go",
		extensions:  []string{"go"},
		language:    golang.GetLanguage,
		fnKinds:     []string{"function_declaration", "method_declaration"},
		fnNameKinds: []string{"identifier", "field_identifier"},
		classKinds:  []string{"type_declaration", "method_declaration"},
		queries: langQueries{
			functions: `
				(function_declaration name: (identifier) @name)
				(method_declaration name: (field_identifier) @name)
			`,
			classes: `(type_declaration (type_spec name: (type_identifier) @name))`,
			imports: `(import_declaration) @path`,
			calls: `
				(call_expression function: (identifier) @name)
				(call_expression function: (selector_expression field: (field_identifier) @name))
			`,
		},
	},
	{
		name:        "java",
		extensions:  []string{"java"},
		language:    java.GetLanguage,
		fnKinds:     []string{"method_declaration", "constructor_declaration"},
		fnNameKinds: []string{"identifier"},
		classKinds:  []string{"class_declaration", "interface_declaration", "enum_declaration"},
		queries: langQueries{
			functions: `
				(method_declaration name: (identifier) @name)
				(constructor_declaration name: (identifier) @name)
			`,
			classes: `
				(class_declaration name: (identifier) @name)
				(interface_declaration name: (identifier) @name)
				(enum_declaration name: (identifier) @name)
			`,
			imports: `(import_declaration) @path`,
			calls: `
				(method_invocation name: (identifier) @name)
				(object_creation_expression type: (type_identifier) @name)
			`,
		},
	},
	{
		name:        "kotlin",
		extensions:  []string{"kt", "kts"},
		language:    kotlin.GetLanguage,
		fnKinds:     []string{"function_declaration"},
		fnNameKinds: []string{"identifier"},
		classKinds:  []string{"class_declaration", "object_declaration"},
		queries: langQueries{
			functions: `(function_declaration name: (identifier) @name)`,
			classes: `
				(class_declaration name: (identifier) @name)
				(object_declaration name: (identifier) @name)
			`,
			imports: `(import) @path`,
			calls: `
				(call_expression (identifier) @name)
				(call_expression (navigation_expression (identifier) @name))
			`,
		},
	},
	{
		name:        "swift",
		extensions:  []string{"swift"},
		language:    swift.GetLanguage,
		fnKinds:     []string{"function_declaration", "init_declaration", "deinit_declaration"},
		fnNameKinds: []string{"simple_identifier"},
		classKinds:  []string{"class_declaration", "protocol_declaration"},
		queries: langQueries{
			functions: `(function_declaration name: (simple_identifier) @name)`,
			classes: `
				(class_declaration name: (type_identifier) @name)
				(class_declaration name: (user_type (type_identifier) @name))
				(protocol_declaration name: (type_identifier) @name)
				(protocol_declaration name: (user_type (type_identifier) @name))
			`,
			imports: `(import_declaration) @path`,
			calls: `
				(call_expression (simple_identifier) @name)
				(call_expression (navigation_expression suffix: (navigation_suffix suffix: (simple_identifier) @name)))
				(constructor_expression (user_type (type_identifier) @name))
			`,
		},
	},
	{
		name:        "ruby",
		extensions:  []string{"rb", "rake", "gemspec"},
		language:    ruby.GetLanguage,
		fnKinds:     []string{"method", "singleton_method"},
		fnNameKinds: []string{"identifier"},
		classKinds:  []string{"class", "module"},
		queries: langQueries{
			functions: `
				(method name: (identifier) @name)
				(singleton_method name: (identifier) @name)
			`,
			classes: `
				(class name: (constant) @name)
				(module name: (constant) @name)
			`,
			imports: `
				(call
				  method: (identifier) @_method
				  (#match? @_method "^(require|require_relative|load)$")) @path
			`,
			calls: `
				(call method: (identifier) @name)
				(call receiver: (constant) @name)
			`,
		},
	},
}

// langForExt finds the registry entry whose extensions include ext (no
// leading dot), or nil if the extension is unsupported.
func langForExt(ext string) *langInfo {
	for i := range languages {
		for _, e := range languages[i].extensions {
			if e == ext {
				return &languages[i]
			}
		}
	}
	return nil
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
