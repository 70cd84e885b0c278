package syntax

import (
	"fmt"
	"go/ast"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
)

// DimOf converts a dimension to its IR reference.
func DimOf(d field.Dimension) ir.Dim {
	return ir.Dim{Name: d.Name, Kind: d.Kind.String()}
}

// DimFrom converts an IR dimension reference back to a dimension.
func DimFrom(d ir.Dim) (field.Dimension, error) {
	kind, err := field.ParseDimKind(d.Kind)
	if err != nil {
		return field.Dimension{}, err
	}
	return field.NewDimension(d.Name, kind), nil
}

// DTypeFrom parses an IR element type name.
func DTypeFrom(s string) (field.DType, error) {
	t, ok := field.ParseDType(s)
	if !ok {
		return 0, fmt.Errorf("unknown element type %q", s)
	}
	return t, nil
}

// OffsetDecl converts an offset to its IR declaration.
func OffsetDecl(o field.Offset) ir.OffsetDecl {
	d := ir.OffsetDecl{Name: o.Name, Source: DimOf(o.Source)}
	for _, t := range o.Targets {
		d.Targets = append(d.Targets, DimOf(t))
	}
	return d
}

// OffsetFrom rebuilds an offset from its IR declaration.
func OffsetFrom(d ir.OffsetDecl) (field.Offset, error) {
	src, err := DimFrom(d.Source)
	if err != nil {
		return field.Offset{}, err
	}
	targets := make([]field.Dimension, len(d.Targets))
	for i, t := range d.Targets {
		if targets[i], err = DimFrom(t); err != nil {
			return field.Offset{}, err
		}
	}
	return field.NewOffset(d.Name, src, targets...)
}

// TypeOf describes a runtime value as an IR type. A field with no dims is a
// scalar.
func TypeOf(v field.Value) ir.Type {
	switch val := v.(type) {
	case *field.Field:
		if val.IsScalar() {
			return ir.ScalarType{DType: val.DType().String()}
		}
		ft := ir.FieldType{DType: val.DType().String()}
		for _, d := range val.Dims() {
			ft.Dims = append(ft.Dims, DimOf(d))
		}
		return ft
	case field.Tuple:
		tt := ir.TupleType{}
		for _, e := range val {
			tt.Elems = append(tt.Elems, TypeOf(e))
		}
		return tt
	default:
		return nil
	}
}

// CheckValue validates v against the annotation t. A nil annotation accepts
// anything.
func CheckValue(t ir.Type, v field.Value) error {
	if t == nil {
		return nil
	}
	if ir.Equivalent(t, TypeOf(v)) {
		return nil
	}
	return &field.ShapeError{
		Code:    field.CodeArgument,
		Message: fmt.Sprintf("value of type %s does not match annotation %s", TypeOf(v), t),
	}
}

// parseAnnotation maps a type expression to an IR type. Accepted forms:
//
//	float64 | float32 | int64 | int32 | int | bool  (scalars)
//	Field[D1, ..., Dn, dtype]                      (fields; dims are captured Dimensions)
//	Tuple[T1, ..., Tn]
//
// A captured field.DType (a type constructor) is accepted wherever dtype is.
func (d *definer) parseAnnotation(e ast.Expr) (ir.Type, error) {
	switch x := e.(type) {
	case *ast.Ident:
		t, err := d.elemType(x)
		if err != nil {
			return nil, err
		}
		return ir.ScalarType{DType: t.String()}, nil
	case *ast.ParenExpr:
		return d.parseAnnotation(x.X)
	case *ast.IndexExpr:
		return d.parseGeneric(x.X, []ast.Expr{x.Index}, e)
	case *ast.IndexListExpr:
		return d.parseGeneric(x.X, x.Indices, e)
	default:
		return nil, d.errorf(KindAnnotation, e, "annotation", "unsupported annotation %s", d.text(e))
	}
}

func (d *definer) parseGeneric(head ast.Expr, args []ast.Expr, whole ast.Expr) (ir.Type, error) {
	id, ok := head.(*ast.Ident)
	if !ok {
		return nil, d.errorf(KindAnnotation, whole, "annotation", "unsupported annotation %s", d.text(whole))
	}
	switch id.Name {
	case "Field":
		last, ok := args[len(args)-1].(*ast.Ident)
		if !ok {
			return nil, d.errorf(KindAnnotation, whole, "annotation", "%s: last argument must be an element type", d.text(whole))
		}
		dtype, err := d.elemType(last)
		if err != nil {
			return nil, err
		}
		ft := ir.FieldType{DType: dtype.String()}
		seen := make(map[ir.Dim]bool)
		for _, a := range args[:len(args)-1] {
			dim, err := d.annotationDim(a)
			if err != nil {
				return nil, err
			}
			if seen[dim] {
				return nil, d.errorf(KindAnnotation, a, "annotation", "dimension %s listed twice", dim.Name)
			}
			seen[dim] = true
			ft.Dims = append(ft.Dims, dim)
		}
		return ft, nil
	case "Tuple":
		tt := ir.TupleType{}
		for _, a := range args {
			et, err := d.parseAnnotation(a)
			if err != nil {
				return nil, err
			}
			tt.Elems = append(tt.Elems, et)
		}
		return tt, nil
	default:
		return nil, d.errorf(KindAnnotation, whole, "annotation", "unknown type constructor %s", id.Name)
	}
}

func (d *definer) annotationDim(e ast.Expr) (ir.Dim, error) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return ir.Dim{}, d.errorf(KindAnnotation, e, "annotation", "dimension expected, got %s", d.text(e))
	}
	v, ok := d.env[id.Name]
	if !ok {
		return ir.Dim{}, d.errorf(KindAnnotation, e, "annotation", "undefined dimension %s", id.Name)
	}
	dim, ok := v.(field.Dimension)
	if !ok {
		return ir.Dim{}, d.errorf(KindAnnotation, e, "annotation", "%s is %T, not a dimension", id.Name, v)
	}
	d.capture(id.Name, Capture{Name: id.Name, Kind: CaptureDimension, Dim: dim})
	return DimOf(dim), nil
}

func (d *definer) elemType(id *ast.Ident) (field.DType, error) {
	if v, ok := d.env[id.Name]; ok {
		if t, ok := v.(field.DType); ok {
			d.capture(id.Name, Capture{Name: id.Name, Kind: CaptureType, DType: t})
			return t, nil
		}
		return 0, d.errorf(KindAnnotation, id, "annotation", "%s is %T, not an element type", id.Name, v)
	}
	if t, ok := field.ParseDType(id.Name); ok {
		return t, nil
	}
	return 0, d.errorf(KindAnnotation, id, "annotation", "unsupported annotation %s", id.Name)
}
