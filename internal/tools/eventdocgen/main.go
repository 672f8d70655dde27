// Command eventdocgen renders a markdown reference of the play-by-play
// event types from the domain sources and the default registry.
//
// Usage:
//
//	go run ./internal/tools/eventdocgen [-out docs/events.md]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/rewind/internal/domain/event"
)

// eventPackageDir is the package the reference is rendered from, relative
// to the repo root.
const eventPackageDir = "internal/domain/event"

// typeDef is one Type constant scanned from the event package.
type typeDef struct {
	Name      string
	Value     string
	Doc       string
	DefinedAt string
}

// payloadDef is one payload struct scanned from the event package. Doc is
// kept because the struct comment names the event types the payload
// belongs to, which is how types and payloads are matched.
type payloadDef struct {
	Name      string
	Doc       string
	DefinedAt string
	Fields    []payloadField
}

type payloadField struct {
	Name     string
	Type     string
	JSONName string
}

func main() {
	var outPath string
	var rootFlag string
	flag.StringVar(&outPath, "out", "docs/events.md", "output path for the reference")
	flag.StringVar(&rootFlag, "root", "", "repo root (defaults to locating go.mod)")
	flag.Parse()

	root, err := resolveRoot(rootFlag)
	if err != nil {
		fatal(err)
	}
	output := outPath
	if !filepath.IsAbs(output) {
		output = filepath.Join(root, outPath)
	}

	types, payloads, err := parseEventPackage(filepath.Join(root, eventPackageDir), root)
	if err != nil {
		fatal(err)
	}

	content := render(types, payloads, event.Default())

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		fatal(fmt.Errorf("create output dir: %w", err))
	}
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		fatal(fmt.Errorf("write reference: %w", err))
	}
}

func resolveRoot(flagRoot string) (string, error) {
	if flagRoot != "" {
		return filepath.Clean(flagRoot), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}
	return findModuleRoot(wd)
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("go.mod not found above %s", start)
}

// parseEventPackage scans the event package for Type constants and payload
// structs. Positions are rendered relative to root.
func parseEventPackage(dir, root string) ([]typeDef, []payloadDef, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(info os.FileInfo) bool {
		return !strings.HasSuffix(info.Name(), "_test.go")
	}, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", dir, err)
	}

	var types []typeDef
	var payloads []payloadDef
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, decl := range file.Decls {
				gen, ok := decl.(*ast.GenDecl)
				if !ok {
					continue
				}
				switch gen.Tok {
				case token.CONST:
					types = append(types, parseTypeConsts(gen, fset, root)...)
				case token.TYPE:
					payloads = append(payloads, parsePayloadTypes(gen, fset, root)...)
				}
			}
		}
	}

	sort.Slice(types, func(i, j int) bool { return types[i].Value < types[j].Value })
	sort.Slice(payloads, func(i, j int) bool { return payloads[i].Name < payloads[j].Name })
	return types, payloads, nil
}

func parseTypeConsts(decl *ast.GenDecl, fset *token.FileSet, root string) []typeDef {
	var defs []typeDef
	for _, spec := range decl.Specs {
		valueSpec, ok := spec.(*ast.ValueSpec)
		if !ok || valueSpec.Type == nil {
			continue
		}
		if exprString(fset, valueSpec.Type) != "Type" {
			continue
		}
		for idx, name := range valueSpec.Names {
			if !strings.HasPrefix(name.Name, "Type") || idx >= len(valueSpec.Values) {
				continue
			}
			lit, ok := valueSpec.Values[idx].(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			value, err := strconv.Unquote(lit.Value)
			if err != nil {
				continue
			}
			defs = append(defs, typeDef{
				Name:      name.Name,
				Value:     value,
				Doc:       docText(valueSpec.Doc),
				DefinedAt: formatPosition(fset.Position(name.Pos()), root),
			})
		}
	}
	return defs
}

func parsePayloadTypes(decl *ast.GenDecl, fset *token.FileSet, root string) []payloadDef {
	var defs []payloadDef
	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok || !strings.HasSuffix(typeSpec.Name.Name, "Payload") {
			continue
		}
		structType, ok := typeSpec.Type.(*ast.StructType)
		if !ok {
			continue
		}
		doc := docText(typeSpec.Doc)
		if doc == "" {
			doc = docText(decl.Doc)
		}
		defs = append(defs, payloadDef{
			Name:      typeSpec.Name.Name,
			Doc:       doc,
			DefinedAt: formatPosition(fset.Position(typeSpec.Name.Pos()), root),
			Fields:    parseFields(structType.Fields, fset),
		})
	}
	return defs
}

func parseFields(fields *ast.FieldList, fset *token.FileSet) []payloadField {
	if fields == nil {
		return nil
	}
	var results []payloadField
	for _, field := range fields.List {
		for _, name := range field.Names {
			parsed := payloadField{
				Name: name.Name,
				Type: exprString(fset, field.Type),
			}
			if field.Tag != nil {
				if tagValue, err := strconv.Unquote(field.Tag.Value); err == nil {
					jsonTag := reflect.StructTag(tagValue).Get("json")
					parsed.JSONName = strings.SplitN(jsonTag, ",", 2)[0]
				}
			}
			results = append(results, parsed)
		}
	}
	return results
}

// payloadFor matches a type value to the payload struct whose doc comment
// names it. The event package documents every payload with the types it
// covers, so a miss means the comment and the constant drifted apart.
func payloadFor(payloads []payloadDef, value string) (payloadDef, bool) {
	for _, payload := range payloads {
		if strings.Contains(payload.Doc, value) {
			return payload, true
		}
	}
	return payloadDef{}, false
}

func unmappedPayloads(payloads []payloadDef, types []typeDef) []payloadDef {
	var unmapped []payloadDef
	for _, payload := range payloads {
		mapped := false
		for _, def := range types {
			if strings.Contains(payload.Doc, def.Value) {
				mapped = true
				break
			}
		}
		if !mapped {
			unmapped = append(unmapped, payload)
		}
	}
	return unmapped
}

func render(types []typeDef, payloads []payloadDef, registry *event.Registry) string {
	var buf bytes.Buffer
	buf.WriteString("# Event Reference\n\n")
	buf.WriteString("Generated by `go run ./internal/tools/eventdocgen`. Do not edit by hand.\n\n")
	buf.WriteString("Events are grouped by addressing policy: game events carry no side or\n")
	buf.WriteString("player, side events must carry a side, player events must carry both.\n\n")

	groups := []struct {
		policy event.AddressingPolicy
		title  string
	}{
		{event.AddressingGame, "Game events"},
		{event.AddressingSide, "Side events"},
		{event.AddressingPlayer, "Player events"},
	}

	var unregistered []typeDef
	for _, group := range groups {
		var section []typeDef
		for _, def := range types {
			registered, ok := registry.Definition(event.Type(def.Value))
			if !ok {
				continue
			}
			if registered.Addressing == group.policy {
				section = append(section, def)
			}
		}
		if len(section) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", group.title))
		for _, def := range section {
			renderType(&buf, def, payloads, registry)
		}
	}

	for _, def := range types {
		if _, ok := registry.Definition(event.Type(def.Value)); !ok {
			unregistered = append(unregistered, def)
		}
	}
	if len(unregistered) > 0 {
		buf.WriteString("## Unregistered types\n\n")
		for _, def := range unregistered {
			buf.WriteString(fmt.Sprintf("- `%s` (`%s`) at `%s`\n", def.Value, def.Name, def.DefinedAt))
		}
		buf.WriteString("\n")
	}

	if unmapped := unmappedPayloads(payloads, types); len(unmapped) > 0 {
		buf.WriteString("## Unmapped payloads\n\n")
		for _, payload := range unmapped {
			buf.WriteString(fmt.Sprintf("- `%s` (`%s`)\n", payload.Name, payload.DefinedAt))
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

func renderType(buf *bytes.Buffer, def typeDef, payloads []payloadDef, registry *event.Registry) {
	registered, _ := registry.Definition(event.Type(def.Value))

	buf.WriteString(fmt.Sprintf("### `%s` (`%s`)\n", def.Value, def.Name))
	if def.Doc != "" {
		buf.WriteString(fmt.Sprintf("%s\n", def.Doc))
	}
	buf.WriteString(fmt.Sprintf("- Defined at: `%s`\n", def.DefinedAt))
	if payload, ok := payloadFor(payloads, def.Value); ok {
		buf.WriteString(fmt.Sprintf("- Payload: `%s` (`%s`)\n", payload.Name, payload.DefinedAt))
		if len(payload.Fields) > 0 {
			buf.WriteString("- Fields:\n")
			for _, field := range payload.Fields {
				label := field.Name
				if field.JSONName != "" {
					label = fmt.Sprintf("%s (json:%q)", label, field.JSONName)
				}
				buf.WriteString(fmt.Sprintf("  - `%s`: `%s`\n", label, field.Type))
			}
		}
	} else {
		buf.WriteString("- Payload: none\n")
	}
	if registered.CheckPayload != nil {
		buf.WriteString("- Payload check: enforced on append\n")
	}
	buf.WriteString("\n")
}

func docText(group *ast.CommentGroup) string {
	if group == nil {
		return ""
	}
	return strings.Join(strings.Fields(group.Text()), " ")
}

func exprString(fset *token.FileSet, expr ast.Expr) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, fset, expr)
	return buf.String()
}

func formatPosition(pos token.Position, root string) string {
	rel, err := filepath.Rel(root, pos.Filename)
	if err != nil {
		rel = pos.Filename
	}
	return fmt.Sprintf("%s:%d", filepath.ToSlash(rel), pos.Line)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
