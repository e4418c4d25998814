package impact

import (
	"context"
	"testing"

	"devguard/internal/core/errors"
	"devguard/internal/engine/extract"
	"devguard/internal/engine/graph"
)

// crossStackSnapshot wires a frontend form to a backend handler that
// persists a schema: UserForm -BindsEndpoint-> POST /users -Calls->
// create_user -ReferencesSchema-> User.
func crossStackSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	backend := &extract.Contribution{
		Path: "backend/api/users.py", Module: "backend.api.users", Language: "python",
		Symbols: []extract.SymbolDecl{
			{Name: "User", Kind: extract.SymbolSchema},
			{Name: "create_user", Kind: extract.SymbolFunction},
			{Name: "POST /users", Kind: extract.SymbolEndpoint, Verb: "POST", Route: "/users"},
		},
		Refs: []extract.RawRef{
			{Kind: extract.RefCall, Name: "create_user", From: "POST /users"},
			{Kind: extract.RefCall, Name: "User", From: "create_user"},
		},
	}
	frontend := &extract.Contribution{
		Path: "web/UserForm.tsx", Module: "web.UserForm", Language: "tsx",
		Symbols: []extract.SymbolDecl{{Name: "UserForm", Kind: extract.SymbolComponent}},
		Refs: []extract.RawRef{
			{Kind: extract.RefEndpoint, Name: "POST /users", Verb: "POST", Route: "/users", From: "UserForm"},
		},
	}

	res, err := graph.NewBuilder(graph.Confidences{}).Build(context.Background(), []*extract.Contribution{backend, frontend}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &graph.Snapshot{Version: 1, Graph: res.Graph, Coverage: res.Coverage}
}

func nodeByName(t *testing.T, g *graph.Graph, name string) graph.Node {
	t.Helper()
	for _, n := range g.Nodes() {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found", name)
	return graph.Node{}
}

func impactedByName(res *Result, name string) (Impacted, bool) {
	for _, i := range res.Impacted {
		if i.Name == name {
			return i, true
		}
	}
	return Impacted{}, false
}

func TestRenameSchemaReachesEndpointWithCappedConfidence(t *testing.T) {
	snap := crossStackSnapshot(t)
	schema := nodeByName(t, snap.Graph, "backend.api.users.User")

	res, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: schema.ID, Kind: ChangeRename})
	if err != nil {
		t.Fatal(err)
	}

	handler, ok := impactedByName(res, "backend.api.users.create_user")
	if !ok {
		t.Fatal("handler referencing the schema must be impacted")
	}
	endpoint, ok := impactedByName(res, "backend.api.users.POST /users")
	if !ok {
		t.Fatal("endpoint must be impacted through its handler")
	}
	form, ok := impactedByName(res, "web.UserForm.UserForm")
	if !ok {
		t.Fatal("frontend form must be impacted through the heuristic binding")
	}

	if handler.Distance != 1 || endpoint.Distance != 2 || form.Distance != 3 {
		t.Errorf("distances: handler=%d endpoint=%d form=%d", handler.Distance, endpoint.Distance, form.Distance)
	}
	if form.Confidence > handler.Confidence {
		t.Errorf("heuristic path confidence %v must not exceed exact reference confidence %v", form.Confidence, handler.Confidence)
	}
	if form.Confidence != 0.85 {
		t.Errorf("binding confidence should cap the path, got %v", form.Confidence)
	}
}

func TestRemoveWithNoDependentsIsEmpty(t *testing.T) {
	snap := crossStackSnapshot(t)
	form := nodeByName(t, snap.Graph, "web.UserForm.UserForm")

	res, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: form.ID, Kind: ChangeRemove})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Impacted) != 0 {
		t.Errorf("expected empty impact, got %v", res.Impacted)
	}
}

func TestUnknownTargetIsNotFound(t *testing.T) {
	snap := crossStackSnapshot(t)

	_, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: "deadbeef", Kind: ChangeRemove})
	if err == nil {
		t.Fatal("expected error for unknown target")
	}
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

// importChainSnapshot builds lib.py with one function, app.py importing lib,
// and svc.py both importing app and calling the function.
func importChainSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	lib := &extract.Contribution{
		Path: "lib.py", Module: "lib", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "util_fn", Kind: extract.SymbolFunction}},
	}
	importer := &extract.Contribution{
		Path: "app.py", Module: "app", Language: "python",
		Refs: []extract.RawRef{{Kind: extract.RefImport, Name: "lib"}},
	}
	caller := &extract.Contribution{
		Path: "svc.py", Module: "svc", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "run", Kind: extract.SymbolFunction}},
		Refs: []extract.RawRef{
			{Kind: extract.RefImport, Name: "app"},
			{Kind: extract.RefCall, Name: "util_fn", From: "run"},
		},
	}

	res, err := graph.NewBuilder(graph.Confidences{}).Build(context.Background(), []*extract.Contribution{lib, importer, caller}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &graph.Snapshot{Graph: res.Graph}
}

func TestSignatureChangeIgnoresImports(t *testing.T) {
	snap := importChainSnapshot(t)

	fn := nodeByName(t, snap.Graph, "lib.util_fn")
	sim, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: fn.ID, Kind: ChangeSignatureChange})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := impactedByName(sim, "svc.run"); !ok {
		t.Error("caller must be impacted by a signature change")
	}
	if _, ok := impactedByName(sim, "app.py"); ok {
		t.Error("mere importer must not be impacted by a signature change")
	}

	// Remove reaches importers of the file too.
	file := nodeByName(t, snap.Graph, "lib.py")
	removal, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: file.ID, Kind: ChangeRemove})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := impactedByName(removal, "app.py"); !ok {
		t.Error("importer must be impacted by removal")
	}
}

func TestRenameOfImportedFileReachesDirectImporters(t *testing.T) {
	snap := importChainSnapshot(t)

	file := nodeByName(t, snap.Graph, "lib.py")
	res, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: file.ID, Kind: ChangeRename})
	if err != nil {
		t.Fatal(err)
	}

	importer, ok := impactedByName(res, "app.py")
	if !ok {
		t.Fatal("direct importer must be impacted when the imported file is renamed")
	}
	if importer.Distance != 1 {
		t.Errorf("direct importer should sit at distance 1, got %d", importer.Distance)
	}
	// svc.py imports app.py, whose own name is unchanged; imports only carry
	// the rename into the renamed node itself.
	if _, ok := impactedByName(res, "svc.py"); ok {
		t.Error("transitive importer must not be reached through import edges")
	}
}

func TestCyclicGraphTerminates(t *testing.T) {
	a := &extract.Contribution{
		Path: "a.py", Module: "a", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "fa", Kind: extract.SymbolFunction}},
		Refs:    []extract.RawRef{{Kind: extract.RefCall, Name: "fb", From: "fa"}},
	}
	b := &extract.Contribution{
		Path: "b.py", Module: "b", Language: "python",
		Symbols: []extract.SymbolDecl{{Name: "fb", Kind: extract.SymbolFunction}},
		Refs:    []extract.RawRef{{Kind: extract.RefCall, Name: "fa", From: "fb"}},
	}

	res, err := graph.NewBuilder(graph.Confidences{}).Build(context.Background(), []*extract.Contribution{a, b}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := &graph.Snapshot{Graph: res.Graph}

	fa := nodeByName(t, snap.Graph, "a.fa")
	sim, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: fa.ID, Kind: ChangeRename})
	if err != nil {
		t.Fatal(err)
	}
	if len(sim.Impacted) != 1 {
		t.Errorf("cycle should impact the peer exactly once, got %v", sim.Impacted)
	}
}

func TestUnknownChangeKindRejected(t *testing.T) {
	snap := crossStackSnapshot(t)
	schema := nodeByName(t, snap.Graph, "backend.api.users.User")

	_, err := Simulate(context.Background(), snap, ChangeSpec{TargetID: schema.ID, Kind: "Repaint"})
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}
