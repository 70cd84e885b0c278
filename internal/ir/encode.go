package ir

import (
	"fmt"
	"slices"
)

// ToValue encodes p (and its deps) as a Value tree.
func (p *Program) ToValue() Value {
	params := make(Array, len(p.Params))
	for i, prm := range p.Params {
		params[i] = Object{"name": String(prm.Name), "type": typeValue(prm.T)}
	}
	offsets := make(Array, len(p.Offsets))
	for i, o := range p.Offsets {
		targets := make(Array, len(o.Targets))
		for j, t := range o.Targets {
			targets[j] = dimValue(t)
		}
		offsets[i] = Object{"name": String(o.Name), "source": dimValue(o.Source), "targets": targets}
	}
	deps := make(Object, len(p.Deps))
	for name, d := range p.Deps {
		deps[name] = d.ToValue()
	}
	return Object{
		"version": String(IRVersion),
		"name":    String(p.Name),
		"params":  params,
		"result":  typeValue(p.Result),
		"body":    stmtsValue(p.Body),
		"offsets": offsets,
		"deps":    deps,
	}
}

// MarshalJSON encodes p as canonical JSON.
func (p *Program) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(p.ToValue())
}

// UnmarshalJSON decodes a program written by MarshalJSON.
func (p *Program) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	dec, err := ProgramFromValue(v)
	if err != nil {
		return err
	}
	*p = *dec
	return nil
}

func dimValue(d Dim) Value {
	return Object{"name": String(d.Name), "kind": String(d.Kind)}
}

func typeValue(t Type) Value {
	switch v := t.(type) {
	case FieldType:
		dims := make(Array, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = dimValue(d)
		}
		return Object{"kind": String("field"), "dims": dims, "dtype": String(v.DType)}
	case ScalarType:
		return Object{"kind": String("scalar"), "dtype": String(v.DType)}
	case TupleType:
		elems := make(Array, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = typeValue(e)
		}
		return Object{"kind": String("tuple"), "elems": elems}
	default:
		return Null{}
	}
}

func locValue(l Loc) Value { return Array{Int(l.Line), Int(l.Col)} }

func stmtsValue(stmts []Stmt) Array {
	out := make(Array, len(stmts))
	for i, s := range stmts {
		out[i] = stmtValue(s)
	}
	return out
}

func stmtValue(s Stmt) Value {
	switch v := s.(type) {
	case *Assign:
		return Object{"kind": String("assign"), "loc": locValue(v.Loc), "name": String(v.Name), "value": exprValue(v.Value)}
	case *If:
		return Object{"kind": String("if"), "loc": locValue(v.Loc), "cond": exprValue(v.Cond),
			"then": stmtsValue(v.Then), "else": stmtsValue(v.Else)}
	case *Return:
		return Object{"kind": String("return"), "loc": locValue(v.Loc), "value": exprValue(v.Value)}
	default:
		panic(fmt.Sprintf("ir: unknown statement %T", s))
	}
}

func exprsValue(exprs []Expr) Array {
	out := make(Array, len(exprs))
	for i, e := range exprs {
		out[i] = exprValue(e)
	}
	return out
}

func exprValue(e Expr) Value {
	obj := Object{"loc": locValue(e.Pos()), "type": typeValue(e.ResultType())}
	switch v := e.(type) {
	case *Sym:
		obj["kind"], obj["name"] = String("sym"), String(v.Name)
	case *Literal:
		obj["kind"], obj["value"] = String("literal"), String(v.Value)
	case *Unary:
		obj["kind"], obj["op"], obj["x"] = String("unary"), String(v.Op), exprValue(v.X)
	case *Binary:
		obj["kind"], obj["op"], obj["x"], obj["y"] = String("binary"), String(v.Op), exprValue(v.X), exprValue(v.Y)
	case *Logical:
		obj["kind"], obj["op"], obj["x"], obj["y"] = String("logical"), String(v.Op), exprValue(v.X), exprValue(v.Y)
	case *Call:
		obj["kind"], obj["name"], obj["args"] = String("call"), String(v.Name), exprsValue(v.Args)
	case *OpCall:
		obj["kind"], obj["op"], obj["args"] = String("opcall"), String(v.Op), exprsValue(v.Args)
	case *Remap:
		obj["kind"], obj["x"], obj["offset"], obj["index"] = String("remap"), exprValue(v.X), String(v.Offset), Int(v.Index)
	case *DimRef:
		obj["kind"], obj["dim"] = String("dim"), dimValue(v.Dim)
	case *Convert:
		obj["kind"], obj["x"], obj["dtype"] = String("convert"), exprValue(v.X), String(v.DType)
	case *MakeTuple:
		obj["kind"], obj["elems"] = String("tuple"), exprsValue(v.Elems)
	case *TupleGet:
		obj["kind"], obj["x"], obj["index"] = String("tuple_get"), exprValue(v.X), Int(v.Index)
	case *Cond:
		obj["kind"], obj["cond"], obj["then"], obj["else"] = String("cond"), exprValue(v.Cond), exprValue(v.Then), exprValue(v.Else)
	default:
		panic(fmt.Sprintf("ir: unknown expression %T", e))
	}
	return obj
}

// ProgramFromValue decodes a program encoded by ToValue.
func ProgramFromValue(v Value) (*Program, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("program: want object, got %T", v)
	}
	ver, _ := obj.str("version")
	if err := CheckIRVersion(ver); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	p := &Program{}
	var err error
	if p.Name, err = obj.str("name"); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	params, err := obj.arr("params")
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.Name, err)
	}
	for i, raw := range params {
		po, ok := raw.(Object)
		if !ok {
			return nil, fmt.Errorf("program %s: params[%d]: want object", p.Name, i)
		}
		name, err := po.str("name")
		if err != nil {
			return nil, fmt.Errorf("program %s: params[%d]: %w", p.Name, i, err)
		}
		t, err := decodeType(po["type"])
		if err != nil {
			return nil, fmt.Errorf("program %s: params[%d]: %w", p.Name, i, err)
		}
		p.Params = append(p.Params, Param{Name: name, T: t})
	}
	if p.Result, err = decodeType(obj["result"]); err != nil {
		return nil, fmt.Errorf("program %s: result: %w", p.Name, err)
	}
	body, err := obj.arr("body")
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.Name, err)
	}
	if p.Body, err = decodeStmts(body); err != nil {
		return nil, fmt.Errorf("program %s: %w", p.Name, err)
	}
	offsets, err := obj.arr("offsets")
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.Name, err)
	}
	for i, raw := range offsets {
		od, err := decodeOffset(raw)
		if err != nil {
			return nil, fmt.Errorf("program %s: offsets[%d]: %w", p.Name, i, err)
		}
		p.Offsets = append(p.Offsets, od)
	}
	if deps, ok := obj["deps"].(Object); ok && len(deps) > 0 {
		p.Deps = make(map[string]*Program, len(deps))
		for _, name := range deps.SortedKeys() {
			d, err := ProgramFromValue(deps[name])
			if err != nil {
				return nil, fmt.Errorf("program %s: dep %s: %w", p.Name, name, err)
			}
			p.Deps[name] = d
		}
	}
	return p, nil
}

func decodeDim(v Value) (Dim, error) {
	obj, ok := v.(Object)
	if !ok {
		return Dim{}, fmt.Errorf("dim: want object, got %T", v)
	}
	name, err := obj.str("name")
	if err != nil {
		return Dim{}, err
	}
	kind, err := obj.str("kind")
	if err != nil {
		return Dim{}, err
	}
	return Dim{Name: name, Kind: kind}, nil
}

func decodeOffset(v Value) (OffsetDecl, error) {
	obj, ok := v.(Object)
	if !ok {
		return OffsetDecl{}, fmt.Errorf("want object, got %T", v)
	}
	name, err := obj.str("name")
	if err != nil {
		return OffsetDecl{}, err
	}
	src, err := decodeDim(obj["source"])
	if err != nil {
		return OffsetDecl{}, fmt.Errorf("source: %w", err)
	}
	targets, err := obj.arr("targets")
	if err != nil {
		return OffsetDecl{}, err
	}
	od := OffsetDecl{Name: name, Source: src}
	for _, t := range targets {
		d, err := decodeDim(t)
		if err != nil {
			return OffsetDecl{}, fmt.Errorf("targets: %w", err)
		}
		od.Targets = append(od.Targets, d)
	}
	return od, nil
}

func decodeType(v Value) (Type, error) {
	if _, ok := v.(Null); ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("type: want object, got %T", v)
	}
	kind, err := obj.str("kind")
	if err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	switch kind {
	case "field":
		dtype, err := obj.str("dtype")
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		dims, err := obj.arr("dims")
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		ft := FieldType{DType: dtype}
		for _, d := range dims {
			dim, err := decodeDim(d)
			if err != nil {
				return nil, fmt.Errorf("type: %w", err)
			}
			ft.Dims = append(ft.Dims, dim)
		}
		return ft, nil
	case "scalar":
		dtype, err := obj.str("dtype")
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		return ScalarType{DType: dtype}, nil
	case "tuple":
		elems, err := obj.arr("elems")
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		tt := TupleType{}
		for _, e := range elems {
			et, err := decodeType(e)
			if err != nil {
				return nil, err
			}
			tt.Elems = append(tt.Elems, et)
		}
		return tt, nil
	default:
		return nil, fmt.Errorf("type: unknown kind %q", kind)
	}
}

func decodeLoc(v Value) Loc {
	arr, ok := v.(Array)
	if !ok || len(arr) != 2 {
		return Loc{}
	}
	line, _ := arr[0].(Int)
	col, _ := arr[1].(Int)
	return Loc{Line: int(line), Col: int(col)}
}

func decodeStmts(arr Array) ([]Stmt, error) {
	out := make([]Stmt, 0, len(arr))
	for i, raw := range arr {
		s, err := decodeStmt(raw)
		if err != nil {
			return nil, fmt.Errorf("body[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStmt(v Value) (Stmt, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("statement: want object, got %T", v)
	}
	kind, err := obj.str("kind")
	if err != nil {
		return nil, err
	}
	loc := decodeLoc(obj["loc"])
	switch kind {
	case "assign":
		name, err := obj.str("name")
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(obj["value"])
		if err != nil {
			return nil, err
		}
		return &Assign{Loc: loc, Name: name, Value: val}, nil
	case "if":
		cond, err := decodeExpr(obj["cond"])
		if err != nil {
			return nil, err
		}
		thenArr, err := obj.arr("then")
		if err != nil {
			return nil, err
		}
		elseArr, err := obj.arr("else")
		if err != nil {
			return nil, err
		}
		s := &If{Loc: loc, Cond: cond}
		if s.Then, err = decodeStmts(thenArr); err != nil {
			return nil, err
		}
		if s.Else, err = decodeStmts(elseArr); err != nil {
			return nil, err
		}
		return s, nil
	case "return":
		val, err := decodeExpr(obj["value"])
		if err != nil {
			return nil, err
		}
		return &Return{Loc: loc, Value: val}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
}

func decodeExprs(obj Object, key string) ([]Expr, error) {
	arr, err := obj.arr(key)
	if err != nil {
		return nil, err
	}
	out := make([]Expr, len(arr))
	for i, raw := range arr {
		if out[i], err = decodeExpr(raw); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
	}
	return out, nil
}

var exprKinds = []string{
	"sym", "literal", "unary", "binary", "logical", "call", "opcall",
	"remap", "dim", "convert", "tuple", "tuple_get", "cond",
}

func decodeExpr(v Value) (Expr, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("expression: want object, got %T", v)
	}
	kind, err := obj.str("kind")
	if err != nil {
		return nil, err
	}
	if !slices.Contains(exprKinds, kind) {
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
	t, err := decodeType(obj["type"])
	if err != nil {
		return nil, err
	}
	meta := Meta{Loc: decodeLoc(obj["loc"]), T: t}

	sub := func(key string) (Expr, error) {
		e, err := decodeExpr(obj[key])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, key, err)
		}
		return e, nil
	}

	switch kind {
	case "sym":
		name, err := obj.str("name")
		return &Sym{Meta: meta, Name: name}, err
	case "literal":
		val, err := obj.str("value")
		return &Literal{Meta: meta, Value: val}, err
	case "unary":
		op, err := obj.str("op")
		if err != nil {
			return nil, err
		}
		x, err := sub("x")
		return &Unary{Meta: meta, Op: op, X: x}, err
	case "binary", "logical":
		op, err := obj.str("op")
		if err != nil {
			return nil, err
		}
		x, err := sub("x")
		if err != nil {
			return nil, err
		}
		y, err := sub("y")
		if err != nil {
			return nil, err
		}
		if kind == "logical" {
			return &Logical{Meta: meta, Op: op, X: x, Y: y}, nil
		}
		return &Binary{Meta: meta, Op: op, X: x, Y: y}, nil
	case "call":
		name, err := obj.str("name")
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(obj, "args")
		return &Call{Meta: meta, Name: name, Args: args}, err
	case "opcall":
		op, err := obj.str("op")
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(obj, "args")
		return &OpCall{Meta: meta, Op: op, Args: args}, err
	case "remap":
		off, err := obj.str("offset")
		if err != nil {
			return nil, err
		}
		idx, err := obj.int("index")
		if err != nil {
			return nil, err
		}
		x, err := sub("x")
		return &Remap{Meta: meta, X: x, Offset: off, Index: idx}, err
	case "dim":
		d, err := decodeDim(obj["dim"])
		return &DimRef{Meta: meta, Dim: d}, err
	case "convert":
		dtype, err := obj.str("dtype")
		if err != nil {
			return nil, err
		}
		x, err := sub("x")
		return &Convert{Meta: meta, X: x, DType: dtype}, err
	case "tuple":
		elems, err := decodeExprs(obj, "elems")
		return &MakeTuple{Meta: meta, Elems: elems}, err
	case "tuple_get":
		idx, err := obj.int("index")
		if err != nil {
			return nil, err
		}
		x, err := sub("x")
		return &TupleGet{Meta: meta, X: x, Index: idx}, err
	default: // cond
		c, err := sub("cond")
		if err != nil {
			return nil, err
		}
		th, err := sub("then")
		if err != nil {
			return nil, err
		}
		el, err := sub("else")
		return &Cond{Meta: meta, Cond: c, Then: th, Else: el}, err
	}
}
