package normalize

import (
	"errors"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// DefaultMaxDepth bounds how deeply nested messages the walker follows.
// Each expression level costs two messages (the Node wrapper and its value).
const DefaultMaxDepth = 10000

// ErrTooDeep is returned when a parse tree nests deeper than the limit.
var ErrTooDeep = errors.New("normalize: parse tree nesting too deep")

// Walk records every constant location and the highest parameter number
// found in tree into set. Nesting beyond maxDepth aborts with ErrTooDeep.
func Walk(tree proto.Message, set *SpanSet, maxDepth int) error {
	if tree == nil {
		return nil
	}
	w := &walker{set: set, maxDepth: maxDepth}
	return w.walk(tree.ProtoReflect())
}

type walker struct {
	set      *SpanSet
	maxDepth int
	depth    int
}

func (w *walker) walk(m protoreflect.Message) error {
	if m == nil || !m.IsValid() {
		return nil
	}

	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.maxDepth {
		return ErrTooDeep
	}

	switch n := m.Interface().(type) {
	case *pg_query.A_Const:
		w.set.Record(int(n.GetLocation()))
		return nil
	case *pg_query.ParamRef:
		w.set.ObserveParam(int(n.GetNumber()))
		return nil
	case *pg_query.TypeName:
		// Type modifiers and interval field masks are part of the type.
		return nil

	// Containers whose only interesting content is a single child.
	case *pg_query.DefElem:
		return w.walkNode(n.GetArg())
	case *pg_query.RawStmt:
		return w.walkNode(n.GetStmt())
	case *pg_query.VariableSetStmt:
		return w.walkNodes(n.GetArgs())
	case *pg_query.CopyStmt:
		return w.walkNode(n.GetQuery())
	case *pg_query.ExplainStmt:
		return w.walkNode(n.GetQuery())
	case *pg_query.AlterRoleStmt:
		return w.walkNodes(n.GetOptions())
	case *pg_query.DeclareCursorStmt:
		return w.walkNode(n.GetQuery())
	}

	return w.walkChildren(m)
}

func (w *walker) walkNode(n *pg_query.Node) error {
	if n == nil {
		return nil
	}
	return w.walk(n.ProtoReflect())
}

func (w *walker) walkNodes(nodes []*pg_query.Node) error {
	for _, n := range nodes {
		if err := w.walkNode(n); err != nil {
			return err
		}
	}
	return nil
}

// walkChildren visits every populated message field of m. A Node wrapper
// has exactly one populated field, its concrete value.
func (w *walker) walkChildren(m protoreflect.Message) error {
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.IsMap() || (fd.Kind() != protoreflect.MessageKind && fd.Kind() != protoreflect.GroupKind) {
			return true
		}
		if fd.IsList() {
			list := v.List()
			for i := range list.Len() {
				if err = w.walk(list.Get(i).Message()); err != nil {
					return false
				}
			}
			return true
		}
		err = w.walk(v.Message())
		return err == nil
	})
	return err
}
