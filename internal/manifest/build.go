package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/conformgo/internal/qname"
	"github.com/vk/conformgo/internal/spec"
)

// specEntry is one decoded spec block: the name it defines, the built spec
// and every qualified name the definition references.
type specEntry struct {
	Name string
	Spec spec.Spec
	Refs []string
}

// fnEntry is one decoded fn block.
type fnEntry struct {
	Name string
	Spec spec.Spec
	Refs []string
}

// exprBodySchema is the schema of one spec-expression body. Exactly one of
// these forms must appear.
var exprBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "ref"},
		{Name: "predicate"},
		{Name: "type"},
		{Name: "and"},
		{Name: "tuple"},
		{Name: "coll_of"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "or"},
		{Type: "cat"},
		{Type: "alt"},
		{Type: "star"},
		{Type: "plus"},
		{Type: "maybe"},
		{Type: "amp"},
		{Type: "keys"},
		{Type: "kv_seq"},
		{Type: "map_of"},
	},
}

var taggedChildSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "branch", LabelNames: []string{"tag"}},
		{Type: "part", LabelNames: []string{"tag"}},
	},
}

var ampBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "re"},
		{Type: "pred"},
	},
}

var keysBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "req"},
		{Name: "opt"},
		{Name: "req_un"},
		{Name: "opt_un"},
	},
}

var mapOfBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "key"},
		{Name: "value"},
	},
}

var fnBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "args"},
		{Type: "ret"},
		{Type: "rel"},
	},
}

// builder decodes spec-expression bodies, accumulating every referenced
// qualified name for later whole-set validation.
type builder struct {
	ctx  context.Context
	refs []string
}

// specByName resolves a name appearing in a manifest attribute: a builtin
// predicate by its table name, or a qualified name as a reference to
// another spec.
func (b *builder) specByName(name string) (spec.Spec, error) {
	if s, ok := builtins[name]; ok {
		return s, nil
	}
	if qname.IsQualified(name) {
		b.refs = append(b.refs, name)
		return spec.Ref(name), nil
	}
	return nil, fmt.Errorf("%q is neither a builtin predicate nor a qualified spec name", name)
}

// buildExpr decodes one spec-expression body into a spec.
func (b *builder) buildExpr(body hcl.Body) (spec.Spec, error) {
	content, diags := body.Content(exprBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	forms := len(content.Attributes) + len(content.Blocks)
	if forms != 1 {
		return nil, fmt.Errorf("a spec expression needs exactly one form, got %d", forms)
	}

	for name, attr := range content.Attributes {
		return b.buildAttrForm(name, attr)
	}
	block := content.Blocks[0]
	return b.buildBlockForm(block)
}

func (b *builder) buildAttrForm(name string, attr *hcl.Attribute) (spec.Spec, error) {
	switch name {
	case "ref":
		var target string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &target); diags.HasErrors() {
			return nil, diags
		}
		if _, err := qname.ParseQualified(target); err != nil {
			return nil, fmt.Errorf("ref: %w", err)
		}
		b.refs = append(b.refs, target)
		return spec.Ref(target), nil

	case "predicate":
		var pred string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &pred); diags.HasErrors() {
			return nil, diags
		}
		s, ok := builtins[pred]
		if !ok {
			return nil, fmt.Errorf("unknown builtin predicate %q", pred)
		}
		return s, nil

	case "type":
		ty, err := typeExprToCtyType(b.ctx, attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("type: %w", err)
		}
		return typeSpec(ty), nil

	case "and":
		children, err := b.specList(attr)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		return spec.And(children...), nil

	case "tuple":
		children, err := b.specList(attr)
		if err != nil {
			return nil, fmt.Errorf("tuple: %w", err)
		}
		return spec.Tuple(children...), nil

	case "coll_of":
		var elem string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &elem); diags.HasErrors() {
			return nil, diags
		}
		s, err := b.specByName(elem)
		if err != nil {
			return nil, fmt.Errorf("coll_of: %w", err)
		}
		return spec.CollOf(s), nil
	}
	return nil, fmt.Errorf("unsupported attribute %q", name)
}

func (b *builder) buildBlockForm(block *hcl.Block) (spec.Spec, error) {
	switch block.Type {
	case "or":
		choices, err := b.taggedChildren(block.Body)
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		return spec.Or(choices...), nil

	case "cat":
		choices, err := b.taggedChildren(block.Body)
		if err != nil {
			return nil, fmt.Errorf("cat: %w", err)
		}
		return spec.Cat(choices...), nil

	case "alt":
		choices, err := b.taggedChildren(block.Body)
		if err != nil {
			return nil, fmt.Errorf("alt: %w", err)
		}
		return spec.Alt(choices...), nil

	case "star":
		child, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, fmt.Errorf("star: %w", err)
		}
		return spec.Star(child), nil

	case "plus":
		child, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, fmt.Errorf("plus: %w", err)
		}
		return spec.Plus(child), nil

	case "maybe":
		child, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, fmt.Errorf("maybe: %w", err)
		}
		return spec.Maybe(child), nil

	case "amp":
		return b.buildAmp(block.Body)

	case "keys":
		return b.buildKeys(block.Body)

	case "kv_seq":
		keysSpec, err := b.buildKeys(block.Body)
		if err != nil {
			return nil, fmt.Errorf("kv_seq: %w", err)
		}
		return spec.KVSeq(keysSpec), nil

	case "map_of":
		return b.buildMapOf(block.Body)
	}
	return nil, fmt.Errorf("unsupported block %q", block.Type)
}

// specList decodes an attribute holding a list of names into specs.
func (b *builder) specList(attr *hcl.Attribute) ([]spec.Spec, error) {
	var names []string
	if diags := gohcl.DecodeExpression(attr.Expr, nil, &names); diags.HasErrors() {
		return nil, diags
	}
	specs := make([]spec.Spec, 0, len(names))
	for _, name := range names {
		s, err := b.specByName(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// taggedChildren decodes ordered `branch "tag" {}` / `part "tag" {}`
// blocks. Block order in the file is the declaration order of the
// children.
func (b *builder) taggedChildren(body hcl.Body) ([]spec.Choice, error) {
	content, diags := body.Content(taggedChildSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	if len(content.Blocks) == 0 {
		return nil, fmt.Errorf("needs at least one tagged child block")
	}
	choices := make([]spec.Choice, 0, len(content.Blocks))
	seen := map[string]bool{}
	for _, child := range content.Blocks {
		tag := child.Labels[0]
		if seen[tag] {
			return nil, fmt.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = true
		cs, err := b.buildExpr(child.Body)
		if err != nil {
			return nil, fmt.Errorf("child %q: %w", tag, err)
		}
		choices = append(choices, spec.C(tag, cs))
	}
	return choices, nil
}

func (b *builder) buildAmp(body hcl.Body) (spec.Spec, error) {
	content, diags := body.Content(ampBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}
	var re spec.Spec
	var preds []spec.Spec
	for _, block := range content.Blocks {
		child, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, fmt.Errorf("amp %s: %w", block.Type, err)
		}
		switch block.Type {
		case "re":
			if re != nil {
				return nil, fmt.Errorf("amp: more than one re block")
			}
			re = child
		case "pred":
			preds = append(preds, child)
		}
	}
	if re == nil {
		return nil, fmt.Errorf("amp: missing re block")
	}
	return spec.Amp(re, preds...), nil
}

func (b *builder) buildKeys(body hcl.Body) (spec.Spec, error) {
	content, diags := body.Content(keysBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	var opts spec.KeysOpts
	if attr, ok := content.Attributes["req"]; ok {
		nodes, err := keyTreeNodes(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("req: %w", err)
		}
		opts.Req = nodes
	}
	if attr, ok := content.Attributes["req_un"]; ok {
		nodes, err := keyTreeNodes(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("req_un: %w", err)
		}
		opts.ReqUn = nodes
	}
	if attr, ok := content.Attributes["opt"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &opts.Opt); diags.HasErrors() {
			return nil, diags
		}
	}
	if attr, ok := content.Attributes["opt_un"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &opts.OptUn); diags.HasErrors() {
			return nil, diags
		}
	}

	s, err := spec.Keys(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *builder) buildMapOf(body hcl.Body) (spec.Spec, error) {
	content, diags := body.Content(mapOfBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}
	keyAttr, ok := content.Attributes["key"]
	if !ok {
		return nil, fmt.Errorf("map_of: missing key")
	}
	valAttr, ok := content.Attributes["value"]
	if !ok {
		return nil, fmt.Errorf("map_of: missing value")
	}
	var keyName, valName string
	if diags := gohcl.DecodeExpression(keyAttr.Expr, nil, &keyName); diags.HasErrors() {
		return nil, diags
	}
	if diags := gohcl.DecodeExpression(valAttr.Expr, nil, &valName); diags.HasErrors() {
		return nil, diags
	}
	keySpec, err := b.specByName(keyName)
	if err != nil {
		return nil, fmt.Errorf("map_of key: %w", err)
	}
	valSpec, err := b.specByName(valName)
	if err != nil {
		return nil, fmt.Errorf("map_of value: %w", err)
	}
	return spec.MapOf(keySpec, valSpec), nil
}

// buildFn decodes one fn block body into a function-signature spec.
func (b *builder) buildFn(body hcl.Body) (spec.Spec, error) {
	content, diags := body.Content(fnBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}
	var args, ret, rel spec.Spec
	for _, block := range content.Blocks {
		child, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", block.Type, err)
		}
		switch block.Type {
		case "args":
			args = child
		case "ret":
			ret = child
		case "rel":
			rel = child
		}
	}
	if args == nil {
		return nil, fmt.Errorf("fn: missing args block")
	}
	return spec.Fn(args, ret, rel), nil
}

// keyTreeNodes decodes a required-keys attribute into boolean key-group
// trees. The attribute value is a tuple whose elements are either key
// names or nested tuples of the form ["or"|"and", child...].
func keyTreeNodes(expr hcl.Expression) ([]spec.KeyNode, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.Type().IsTupleType() {
		return nil, fmt.Errorf("expected a list, got %s", val.Type().FriendlyName())
	}
	nodes := make([]spec.KeyNode, 0, val.LengthInt())
	for _, elem := range val.AsValueSlice() {
		node, err := parseKeyNode(elem)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseKeyNode(val cty.Value) (spec.KeyNode, error) {
	if val.Type() == cty.String {
		return spec.Key(val.AsString()), nil
	}
	if !val.Type().IsTupleType() {
		return nil, fmt.Errorf("key requirement must be a name or a [\"or\"/\"and\", ...] group, got %s", val.Type().FriendlyName())
	}

	elems := val.AsValueSlice()
	if len(elems) < 2 {
		return nil, fmt.Errorf("key group needs an operator and at least one child")
	}
	if elems[0].Type() != cty.String {
		return nil, fmt.Errorf("key group operator must be \"or\" or \"and\"")
	}
	op := elems[0].AsString()

	children := make([]spec.KeyNode, 0, len(elems)-1)
	for _, elem := range elems[1:] {
		child, err := parseKeyNode(elem)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch op {
	case "or":
		return spec.AnyKey(children...), nil
	case "and":
		return spec.AllKeys(children...), nil
	}
	return nil, fmt.Errorf("unknown key group operator %q", op)
}
