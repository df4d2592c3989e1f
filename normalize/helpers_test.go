package normalize_test

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/fabriziomello/pg-normalize-query/normalize"
)

type fakeParser struct {
	tree *pg_query.ParseResult
	err  error
}

func (p fakeParser) Parse(string) (*pg_query.ParseResult, error) {
	return p.tree, p.err
}

type fakeTokenizer struct {
	tokens []normalize.Token
	err    error
}

func (f fakeTokenizer) Open(string) (normalize.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fakeSession{tokens: f.tokens}, nil
}

type fakeSession struct {
	tokens []normalize.Token
}

func (s *fakeSession) Next() (normalize.Token, bool) {
	if len(s.tokens) == 0 {
		return normalize.Token{}, false
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, true
}

func (s *fakeSession) Close() error { return nil }

func aconst(loc int32) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{Location: loc}}}
}

func paramRef(number int32) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_ParamRef{ParamRef: &pg_query.ParamRef{Number: number}}}
}

func defElem(arg *pg_query.Node) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_DefElem{DefElem: &pg_query.DefElem{Defname: "opt", Arg: arg}}}
}

func selectOf(targets ...*pg_query.Node) *pg_query.Node {
	list := make([]*pg_query.Node, len(targets))
	for i, v := range targets {
		list[i] = &pg_query.Node{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: v}}}
	}
	return &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: &pg_query.SelectStmt{TargetList: list}}}
}

func offsets(set *normalize.SpanSet) []int {
	var out []int
	for _, sp := range set.Spans() {
		out = append(out, sp.Offset)
	}
	return out
}
