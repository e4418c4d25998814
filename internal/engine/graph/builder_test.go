package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devguard/internal/engine/extract"
)

func backendContribution() *extract.Contribution {
	return &extract.Contribution{
		Path:     "backend/api/users.py",
		Language: "python",
		Module:   "backend.api.users",
		Symbols: []extract.SymbolDecl{
			{Name: "create_user", Kind: extract.SymbolFunction, Span: extract.Span{StartLine: 10, EndLine: 14}},
			{Name: "POST /users", Kind: extract.SymbolEndpoint, Verb: "POST", Route: "/users", Span: extract.Span{StartLine: 9, EndLine: 14}},
			{Name: "User", Kind: extract.SymbolSchema, Span: extract.Span{StartLine: 4, EndLine: 7}},
		},
		Refs: []extract.RawRef{
			{Kind: extract.RefCall, Name: "create_user", From: "POST /users", Span: extract.Span{StartLine: 9, EndLine: 9}},
			{Kind: extract.RefCall, Name: "User", From: "create_user", Span: extract.Span{StartLine: 12, EndLine: 12}},
		},
	}
}

func frontendContribution() *extract.Contribution {
	return &extract.Contribution{
		Path:     "web/UserForm.tsx",
		Language: "tsx",
		Module:   "web.UserForm",
		Symbols: []extract.SymbolDecl{
			{Name: "UserForm", Kind: extract.SymbolComponent, Span: extract.Span{StartLine: 3, EndLine: 20}},
		},
		Refs: []extract.RawRef{
			{Kind: extract.RefEndpoint, Name: "POST /users", Verb: "POST", Route: "/users", From: "UserForm", Span: extract.Span{StartLine: 8, EndLine: 8}},
		},
	}
}

func findNode(t *testing.T, g *Graph, name string) Node {
	t.Helper()
	for _, n := range g.Nodes() {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found", name)
	return Node{}
}

func findEdge(g *Graph, source, target NodeID, kind EdgeKind) (Edge, bool) {
	for _, e := range g.Edges() {
		if e.Source == source && e.Target == target && e.Kind == kind {
			return e, true
		}
	}
	return Edge{}, false
}

func TestBuildResolvesCallsAndSchemas(t *testing.T) {
	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{backendContribution()}, nil, nil)
	require.NoError(t, err)

	handler := findNode(t, res.Graph, "backend.api.users.create_user")
	endpoint := findNode(t, res.Graph, "backend.api.users.POST /users")
	schema := findNode(t, res.Graph, "backend.api.users.User")

	call, ok := findEdge(res.Graph, endpoint.ID, handler.ID, EdgeCalls)
	require.True(t, ok, "endpoint should call its handler")
	assert.Equal(t, 1.0, call.Confidence)

	ref, ok := findEdge(res.Graph, handler.ID, schema.ID, EdgeReferencesSchema)
	require.True(t, ok, "call to a Schema target becomes ReferencesSchema")
	assert.Equal(t, 1.0, ref.Confidence)
	assert.Equal(t, "backend/api/users.py", ref.Provenance.File)
}

func TestBuildEndpointBinding(t *testing.T) {
	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{backendContribution(), frontendContribution()}, nil, nil)
	require.NoError(t, err)

	form := findNode(t, res.Graph, "web.UserForm.UserForm")
	endpoint := findNode(t, res.Graph, "backend.api.users.POST /users")

	bind, ok := findEdge(res.Graph, form.ID, endpoint.ID, EdgeBindsEndpoint)
	require.True(t, ok)
	assert.Equal(t, 0.85, bind.Confidence, "verb+path match")
}

func TestBuildEndpointPathOnlyBinding(t *testing.T) {
	frontend := frontendContribution()
	frontend.Refs[0].Verb = "PUT" // no PUT handler exists

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{backendContribution(), frontend}, nil, nil)
	require.NoError(t, err)

	form := findNode(t, res.Graph, "web.UserForm.UserForm")
	endpoint := findNode(t, res.Graph, "backend.api.users.POST /users")

	bind, ok := findEdge(res.Graph, form.ID, endpoint.ID, EdgeBindsEndpoint)
	require.True(t, ok)
	assert.Equal(t, 0.60, bind.Confidence, "path-only match")
}

func TestBuildSeededEndpointRaisesConfidence(t *testing.T) {
	seeds := []EndpointSeed{{Verb: "POST", Route: "/users", Doc: "openapi.yaml"}}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{backendContribution(), frontendContribution()}, nil, seeds)
	require.NoError(t, err)

	form := findNode(t, res.Graph, "web.UserForm.UserForm")
	endpoint := findNode(t, res.Graph, "backend.api.users.POST /users")

	bind, ok := findEdge(res.Graph, form.ID, endpoint.ID, EdgeBindsEndpoint)
	require.True(t, ok)
	assert.Equal(t, 0.90, bind.Confidence, "seeded endpoint binding")
}

func TestBuildSeedDeclaresMissingEndpoint(t *testing.T) {
	seeds := []EndpointSeed{{Verb: "DELETE", Route: "/users/{id}", Doc: "openapi.yaml"}}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), nil, nil, seeds)
	require.NoError(t, err)

	node := findNode(t, res.Graph, "DELETE /users/*")
	assert.Equal(t, KindEndpoint, node.Kind)
	assert.Equal(t, "openapi.yaml", node.Path)
}

func TestBuildPathProximityTieBreak(t *testing.T) {
	near := &extract.Contribution{
		Path: "src/api/a.py", Module: "src.api.a", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "helper", Kind: extract.SymbolFunction}},
	}
	far := &extract.Contribution{
		Path: "web/b.py", Module: "web.b", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "helper", Kind: extract.SymbolFunction}},
	}
	caller := &extract.Contribution{
		Path: "src/api/c.py", Module: "src.api.c", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "run", Kind: extract.SymbolFunction}},
		Refs:    []extract.RawRef{{Kind: extract.RefCall, Name: "helper", From: "run"}},
	}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{near, far, caller}, nil, nil)
	require.NoError(t, err)

	run := findNode(t, res.Graph, "src.api.c.run")
	nearHelper := findNode(t, res.Graph, "src.api.a.helper")

	edge, ok := findEdge(res.Graph, run.ID, nearHelper.ID, EdgeCalls)
	require.True(t, ok, "proximity should prefer the same-subtree declaration")
	assert.Equal(t, 0.9, edge.Confidence)
}

func TestBuildUnresolvedReferenceDropped(t *testing.T) {
	caller := &extract.Contribution{
		Path: "a.py", Module: "a", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "run", Kind: extract.SymbolFunction}},
		Refs:    []extract.RawRef{{Kind: extract.RefCall, Name: "missing_fn", From: "run"}},
	}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{caller}, nil, nil)
	require.NoError(t, err)

	for _, e := range res.Graph.Edges() {
		assert.NotEqual(t, EdgeCalls, e.Kind, "unresolved call must not produce an edge")
	}
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "missing_fn", res.Unresolved[0].Name)
}

func TestBuildImportsResolveToFilesAndPackages(t *testing.T) {
	session := &extract.Contribution{
		Path: "src/db/session.py", Module: "src.db.session", Language: "python",
	}
	app := &extract.Contribution{
		Path: "src/app.py", Module: "src.app", Language: "python",
		Refs: []extract.RawRef{
			{Kind: extract.RefImport, Name: "db.session"},
			{Kind: extract.RefImport, Name: "db"},
		},
	}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{session, app}, nil, nil)
	require.NoError(t, err)

	appFile := findNode(t, res.Graph, "src/app.py")
	sessionFile := findNode(t, res.Graph, "src/db/session.py")
	dbPackage := findNode(t, res.Graph, "src.db")
	assert.Equal(t, KindModule, dbPackage.Kind)

	_, ok := findEdge(res.Graph, appFile.ID, sessionFile.ID, EdgeImports)
	assert.True(t, ok, "dotted import should resolve to the declaring file")
	_, ok = findEdge(res.Graph, appFile.ID, dbPackage.ID, EdgeImports)
	assert.True(t, ok, "package import should resolve to the Module node")
}

func TestBuildOrderIndependenceAndDeterminism(t *testing.T) {
	a := backendContribution()
	b := frontendContribution()
	c := &extract.Contribution{
		Path: "backend/api/orders.py", Module: "backend.api.orders", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "list_orders", Kind: extract.SymbolFunction}},
		Refs:    []extract.RawRef{{Kind: extract.RefCall, Name: "create_user", From: "list_orders"}},
	}

	builder := NewBuilder(Confidences{})
	permutations := [][]*extract.Contribution{
		{a, b, c}, {c, b, a}, {b, a, c}, {c, a, b},
	}

	var baseline *Result
	for _, perm := range permutations {
		res, err := builder.Build(context.Background(), perm, nil, nil)
		require.NoError(t, err)
		if baseline == nil {
			baseline = res
			continue
		}
		assert.Equal(t, baseline.Graph.Nodes(), res.Graph.Nodes(), "node set must be order-independent")
		assert.Equal(t, baseline.Graph.Edges(), res.Graph.Edges(), "edge multiset must be order-independent")
	}
}

func TestBuildCoverage(t *testing.T) {
	unparsed := []extract.UnparsedFile{{Path: "broken.py", Reason: "syntax error"}}

	b := NewBuilder(Confidences{})
	res, err := b.Build(context.Background(), []*extract.Contribution{backendContribution()}, unparsed, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Coverage, 1e-9)
}

func TestBuildCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(Confidences{})
	_, err := b.Build(ctx, []*extract.Contribution{backendContribution()}, nil, nil)
	require.Error(t, err)
}

func TestMakeNodeIDStable(t *testing.T) {
	first := MakeNodeID("src/api/users.py", "backend.api.users.create_user")
	second := MakeNodeID("src/api/users.py", "backend.api.users.create_user")
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, MakeNodeID("src/api/users.py", "backend.api.users.delete_user"))
}
