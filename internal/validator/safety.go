package validator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ViolationKind classifies a safety or shape violation.
type ViolationKind string

const (
	ForbiddenImport    ViolationKind = "forbidden_import"
	ForbiddenName      ViolationKind = "forbidden_name"
	ForbiddenAttribute ViolationKind = "forbidden_attribute"
	ForbiddenLiteral   ViolationKind = "forbidden_literal"
	DynamicImport      ViolationKind = "dynamic_import"
	BuiltinsAccess     ViolationKind = "builtins_access"
	MissingSparkEntry  ViolationKind = "missing_spark_session"
	MissingReadOp      ViolationKind = "missing_read_operation"
	SyntaxError        ViolationKind = "syntax_error"
)

// Violation is a single finding against generated code.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Detail string        `json:"detail"`
	Line   int           `json:"line"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (line %d): %s", v.Kind, v.Line, v.Detail)
}

// UnsafeCodeError reports that generated code contains forbidden constructs.
type UnsafeCodeError struct {
	Violations []Violation
}

func (e *UnsafeCodeError) Error() string {
	if len(e.Violations) == 1 {
		return "unsafe code: " + e.Violations[0].String()
	}
	return fmt.Sprintf("unsafe code: %d violations, first: %s", len(e.Violations), e.Violations[0].String())
}

// Names that must never appear as identifiers in generated code.
var forbiddenNames = map[string]bool{
	"eval":       true,
	"exec":       true,
	"open":       true,
	"compile":    true,
	"__import__": true,
	"globals":    true,
	"locals":     true,
	"vars":       true,
}

// Modules that must never be imported by generated code.
var forbiddenModules = map[string]bool{
	"os":         true,
	"sys":        true,
	"subprocess": true,
	"importlib":  true,
	"pathlib":    true,
	"shutil":     true,
	"socket":     true,
	"requests":   true,
	"http":       true,
	"urllib":     true,
	"ftplib":     true,
	"paramiko":   true,
	"psutil":     true,
}

// Attributes that must never be accessed on a bare module reference.
var forbiddenAttrs = map[string]bool{
	"system": true,
	"popen":  true,
	"run":    true,
	"remove": true,
	"unlink": true,
}

// SafetyChecker scans Python source for forbidden constructs using a
// Tree-sitter AST walk.
type SafetyChecker struct {
	mu      sync.Mutex
	parser  *sitter.Parser
	modules map[string]bool
}

// NewSafetyChecker creates a checker. extraModules extends the built-in
// forbidden module set.
func NewSafetyChecker(extraModules []string) *SafetyChecker {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	modules := make(map[string]bool, len(forbiddenModules)+len(extraModules))
	for m := range forbiddenModules {
		modules[m] = true
	}
	for _, m := range extraModules {
		modules[strings.TrimSpace(m)] = true
	}

	return &SafetyChecker{
		parser:  parser,
		modules: modules,
	}
}

// Check scans the code and returns an *UnsafeCodeError listing every
// violation found, or nil when the code is clean.
func (c *SafetyChecker) Check(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	content := []byte(code)
	tree, err := c.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("failed to parse code: %w", err)
	}
	defer tree.Close()

	var violations []Violation
	c.walk(tree.RootNode(), content, &violations)

	if len(violations) > 0 {
		return &UnsafeCodeError{Violations: violations}
	}
	return nil
}

func nodeText(n *sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

func nodeLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// moduleRoot returns the first segment of a dotted module path.
func moduleRoot(name string) string {
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

func (c *SafetyChecker) walk(node *sitter.Node, content []byte, out *[]Violation) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c.visit(node.NamedChild(i), content, out)
	}
}

func (c *SafetyChecker) visit(node *sitter.Node, content []byte, out *[]Violation) {
	switch node.Type() {
	case "import_statement":
		c.checkImport(node, content, out)

	case "import_from_statement":
		c.checkImportFrom(node, content, out)

	case "attribute":
		c.checkAttribute(node, content, out)
		// Recurse into the object side only; the attribute name
		// identifier is already covered above. Chains like os.path.join
		// get the same dispatch at every level, so os.path is checked
		// even when it sits inside a longer chain.
		if obj := node.ChildByFieldName("object"); obj != nil {
			c.visit(obj, content, out)
		}

	case "string":
		c.checkString(node, content, out)
		// f-string interpolations carry arbitrary expressions.
		c.walk(node, content, out)

	case "identifier":
		c.checkIdentifier(node, content, out)

	default:
		c.walk(node, content, out)
	}
}

func (c *SafetyChecker) checkImport(node *sitter.Node, content []byte, out *[]Violation) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		name := ""
		switch child.Type() {
		case "dotted_name":
			name = nodeText(child, content)
		case "aliased_import":
			if n := child.ChildByFieldName("name"); n != nil {
				name = nodeText(n, content)
			}
		}
		if name == "" {
			continue
		}
		if c.modules[moduleRoot(name)] {
			*out = append(*out, Violation{
				Kind:   ForbiddenImport,
				Detail: fmt.Sprintf("import of forbidden module: %s", name),
				Line:   nodeLine(child),
			})
		}
	}
}

func (c *SafetyChecker) checkImportFrom(node *sitter.Node, content []byte, out *[]Violation) {
	mod := node.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	name := nodeText(mod, content)
	if c.modules[moduleRoot(name)] {
		*out = append(*out, Violation{
			Kind:   ForbiddenImport,
			Detail: fmt.Sprintf("import from forbidden module: %s", name),
			Line:   nodeLine(mod),
		})
	}
}

func (c *SafetyChecker) checkAttribute(node *sitter.Node, content []byte, out *[]Violation) {
	obj := node.ChildByFieldName("object")
	attr := node.ChildByFieldName("attribute")
	if obj == nil || attr == nil || obj.Type() != "identifier" {
		return
	}

	objName := nodeText(obj, content)
	attrName := nodeText(attr, content)

	if objName == "importlib" {
		*out = append(*out, Violation{
			Kind:   DynamicImport,
			Detail: "dynamic imports via importlib are forbidden",
			Line:   nodeLine(node),
		})
		return
	}

	if c.modules[objName] {
		*out = append(*out, Violation{
			Kind:   ForbiddenAttribute,
			Detail: fmt.Sprintf("forbidden module attribute access: %s.%s", objName, attrName),
			Line:   nodeLine(node),
		})
		return
	}

	if forbiddenAttrs[attrName] {
		*out = append(*out, Violation{
			Kind:   ForbiddenAttribute,
			Detail: fmt.Sprintf("forbidden attribute access: %s.%s", objName, attrName),
			Line:   nodeLine(node),
		})
	}
}

func (c *SafetyChecker) checkIdentifier(node *sitter.Node, content []byte, out *[]Violation) {
	name := nodeText(node, content)
	if name == "__builtins__" {
		*out = append(*out, Violation{
			Kind:   BuiltinsAccess,
			Detail: "access to __builtins__ is forbidden",
			Line:   nodeLine(node),
		})
		return
	}
	if forbiddenNames[name] {
		*out = append(*out, Violation{
			Kind:   ForbiddenName,
			Detail: fmt.Sprintf("forbidden name: %s", name),
			Line:   nodeLine(node),
		})
	}
}

func (c *SafetyChecker) checkString(node *sitter.Node, content []byte, out *[]Violation) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "string_content" {
			continue
		}
		text := nodeText(child, content)
		if forbiddenNames[text] || c.modules[text] {
			*out = append(*out, Violation{
				Kind:   ForbiddenLiteral,
				Detail: fmt.Sprintf("forbidden string literal: %q", text),
				Line:   nodeLine(child),
			})
		}
	}
}

// CheckSyntax parses the code and reports the first syntax error found.
// Returns nil when the parse tree is clean.
func CheckSyntax(ctx context.Context, code string) error {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("failed to parse code: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	if errNode := findErrorNode(root); errNode != nil {
		return &UnsafeCodeError{Violations: []Violation{{
			Kind:   SyntaxError,
			Detail: fmt.Sprintf("syntax error near %q", truncate(nodeText(errNode, content), 40)),
			Line:   nodeLine(errNode),
		}}}
	}

	return &UnsafeCodeError{Violations: []Violation{{
		Kind:   SyntaxError,
		Detail: "syntax error",
		Line:   1,
	}}}
}

func findErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
