package extract

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/hyperjump/codelod/internal/models"
)

// GoParser extracts type declarations (class scope) and functions and methods
// (function scope) using the standard library parser. Methods carry their
// receiver type as parent.
type GoParser struct{}

func (GoParser) Language() string { return "go" }

func (GoParser) Parse(path string, source string) ([]models.Entity, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, source, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	entities := []models.Entity{moduleEntity(path, source)}
	span := func(from, to token.Pos) (string, models.Location) {
		start, end := fset.Position(from), fset.Position(to)
		return source[start.Offset:end.Offset], models.Location{
			Path:      path,
			StartLine: start.Line,
			EndLine:   end.Line,
		}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				from, to := ts.Pos(), ts.End()
				if !d.Lparen.IsValid() {
					// Ungrouped declarations keep the "type" keyword.
					from, to = d.Pos(), d.End()
				}
				src, loc := span(from, to)
				entities = append(entities, models.Entity{
					Scope:    models.ScopeClass,
					Name:     ts.Name.Name,
					Location: loc,
					Source:   src,
				})
			}
		case *ast.FuncDecl:
			src, loc := span(d.Pos(), d.End())
			entities = append(entities, models.Entity{
				Scope:      models.ScopeFunction,
				Name:       d.Name.Name,
				Location:   loc,
				Source:     src,
				ParentName: receiverName(d.Recv),
			})
		}
	}
	return entities, nil
}

// receiverName returns the base type name of a method receiver, or "" for plain functions.
func receiverName(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}
	expr := recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}
