// Command aggregate_audit reports which service methods write marketplace
// tables directly through repositories and which go through an aggregate.
//
// Usage:
//
//	go run ./cmd/aggregate_audit [-strict] [root]
//
// With -strict the command exits non-zero when a service writes a
// ledger-owned repository directly.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type repoField struct {
	Path        string `json:"path"`
	RepoType    string `json:"repo_type"`
	Area        string `json:"area"`
	LedgerOwned bool   `json:"ledger_owned"`
}

type methodStats struct {
	StructName           string   `json:"struct_name"`
	Method               string   `json:"method"`
	File                 string   `json:"file"`
	Line                 int      `json:"line"`
	RepoWriteCalls       int      `json:"repo_write_calls"`
	RepoFieldsWritten    []string `json:"repo_fields_written"`
	LedgerRepoWrites     int      `json:"ledger_repo_writes"`
	AggregateWriteCalls  int      `json:"aggregate_write_calls"`
	AggregateWriteMethod []string `json:"aggregate_write_methods"`
}

type auditReport struct {
	RepoWriteCallsites       int           `json:"repo_write_callsites"`
	LedgerRepoWriteCallsites int           `json:"ledger_repo_write_callsites"`
	AggregateWriteCallsites  int           `json:"aggregate_write_callsites"`
	MethodsWithRepoWrites    []methodStats `json:"methods_with_repo_writes"`
	MethodsWithAggregates    []methodStats `json:"methods_with_aggregate_writes"`
	RepoFieldInventory       []repoField   `json:"repo_field_inventory"`
	AggregateFieldInventory  []string      `json:"aggregate_field_inventory"`
}

type structFields struct {
	Repos      map[string]repoField
	Aggregates map[string]string
	// Nested holds fields typed as another struct of the package, e.g. a deps bundle.
	Nested map[string]string
}

var repoWriteMethods = map[string]bool{
	"Create":              true,
	"CreateIfAbsent":      true,
	"Insert":              true,
	"UpdateFields":        true,
	"Delete":              true,
	"DeleteByIDs":         true,
	"DeleteByLessonIDs":   true,
	"AdjustCounters":      true,
	"MarkPayoutProcessed": true,
	"LockByID":            true,
	"LockByOrderID":       true,
	"LockByUserCourse":    true,
}

var aggregateTypes = map[string]bool{
	"EnrollmentLedger":    true,
	"ProgressionEngine":   true,
	"PaymentLedger":       true,
	"CertificationIssuer": true,
	"CatalogAggregate":    true,
}

var aggregateWriteMethods = map[string]bool{
	"Enroll":              true,
	"MarkLessonComplete":  true,
	"RecordVideoProgress": true,
	"GradeQuiz":           true,
	"SubmitAssignment":    true,
	"TouchLesson":         true,
	"OpenCheckout":        true,
	"AttachRedirect":      true,
	"Reconcile":           true,
	"FailCheckout":        true,
	"RequestRefund":       true,
	"CompleteRefund":      true,
	"ProcessPayouts":      true,
	"Issue":               true,
	"AddModule":           true,
	"UpdateModule":        true,
	"DeleteModule":        true,
	"AddLesson":           true,
	"UpdateLesson":        true,
	"DeleteLesson":        true,
	"RecountCourse":       true,
	"UpsertReview":        true,
}

func main() {
	strict := flag.Bool("strict", false, "exit 1 when a service writes a ledger-owned repository directly")
	flag.Parse()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	report, err := audit(root)
	if err != nil {
		exitf("%v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))

	if *strict && report.LedgerRepoWriteCallsites > 0 {
		exitf("%d ledger-owned repository writes bypass the aggregates", report.LedgerRepoWriteCallsites)
	}
}

func audit(root string) (auditReport, error) {
	servicesDir := filepath.Join(root, "internal", "services")
	fset := token.NewFileSet()

	pkgs, err := parser.ParseDir(fset, servicesDir, func(fi fs.FileInfo) bool {
		name := fi.Name()
		return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
	}, 0)
	if err != nil {
		return auditReport{}, fmt.Errorf("parse dir: %w", err)
	}
	pkg, ok := pkgs["services"]
	if !ok {
		return auditReport{}, fmt.Errorf("services package not found in %s", servicesDir)
	}

	fieldsByStruct := map[string]structFields{}
	for _, f := range pkg.Files {
		collectStructFields(f, fieldsByStruct)
	}
	flattenNested(fieldsByStruct)

	var methods []methodStats
	for filePath, f := range pkg.Files {
		rel, err := filepath.Rel(root, filePath)
		if err != nil {
			rel = filePath
		}
		collectMethodStats(fset, f, rel, fieldsByStruct, &methods)
	}
	return buildReport(fieldsByStruct, methods), nil
}

func collectStructFields(file *ast.File, out map[string]structFields) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}
			sf := structFields{
				Repos:      map[string]repoField{},
				Aggregates: map[string]string{},
				Nested:     map[string]string{},
			}
			for _, field := range st.Fields.List {
				for _, name := range field.Names {
					classifyField(name.Name, field.Type, &sf)
				}
			}
			out[ts.Name.Name] = sf
		}
	}
}

func classifyField(name string, expr ast.Expr, sf *structFields) {
	switch t := expr.(type) {
	case *ast.Ident:
		sf.Nested[name] = t.Name
	case *ast.SelectorExpr:
		pkgIdent, ok := t.X.(*ast.Ident)
		if !ok {
			return
		}
		typeName := strings.TrimSpace(t.Sel.Name)
		switch pkgIdent.Name {
		case "repos":
			if !strings.HasSuffix(typeName, "Repo") {
				return
			}
			area, ledger := areaForRepoType(typeName)
			sf.Repos[name] = repoField{Path: name, RepoType: typeName, Area: area, LedgerOwned: ledger}
		case "domainagg":
			if aggregateTypes[typeName] {
				sf.Aggregates[name] = typeName
			}
		}
	}
}

// flattenNested lifts fields of nested package structs into their parent
// under a dotted path, so s.deps.Payments resolves like s.payments.
func flattenNested(all map[string]structFields) {
	for name, sf := range all {
		for field, nestedType := range sf.Nested {
			inner, ok := all[nestedType]
			if !ok || nestedType == name {
				continue
			}
			for k, rf := range inner.Repos {
				rf.Path = field + "." + k
				sf.Repos[rf.Path] = rf
			}
			for k, agg := range inner.Aggregates {
				sf.Aggregates[field+"."+k] = agg
			}
		}
	}
}

func collectMethodStats(
	fset *token.FileSet,
	file *ast.File,
	relFile string,
	fieldsByStruct map[string]structFields,
	out *[]methodStats,
) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil || len(fd.Recv.List) == 0 {
			continue
		}
		recvName, recvType := recvInfo(fd.Recv.List[0])
		if recvType == "" || recvName == "" {
			continue
		}
		sf, ok := fieldsByStruct[recvType]
		if !ok || (len(sf.Repos) == 0 && len(sf.Aggregates) == 0) {
			continue
		}

		stats := methodStats{
			StructName: recvType,
			Method:     fd.Name.Name,
			File:       filepath.ToSlash(relFile),
			Line:       fset.Position(fd.Pos()).Line,
		}
		repoFields := map[string]bool{}
		aggMethods := map[string]bool{}

		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			fnSel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			path, ok := fieldPath(fnSel.X, recvName)
			if !ok {
				return true
			}
			method := fnSel.Sel.Name

			if rf, ok := sf.Repos[path]; ok && repoWriteMethods[method] {
				stats.RepoWriteCalls++
				repoFields[path] = true
				if rf.LedgerOwned {
					stats.LedgerRepoWrites++
				}
				return true
			}
			if _, ok := sf.Aggregates[path]; ok && aggregateWriteMethods[method] {
				stats.AggregateWriteCalls++
				aggMethods[method] = true
			}
			return true
		})

		stats.RepoFieldsWritten = sortedKeys(repoFields)
		stats.AggregateWriteMethod = sortedKeys(aggMethods)
		*out = append(*out, stats)
	}
}

// fieldPath turns s.a.b into "a.b" when s is the receiver.
func fieldPath(expr ast.Expr, recvName string) (string, bool) {
	var parts []string
	for {
		switch t := expr.(type) {
		case *ast.SelectorExpr:
			parts = append([]string{t.Sel.Name}, parts...)
			expr = t.X
		case *ast.Ident:
			if t.Name != recvName || len(parts) == 0 {
				return "", false
			}
			return strings.Join(parts, "."), true
		default:
			return "", false
		}
	}
}

func buildReport(fieldsByStruct map[string]structFields, methods []methodStats) auditReport {
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].File == methods[j].File {
			return methods[i].Line < methods[j].Line
		}
		return methods[i].File < methods[j].File
	})

	var report auditReport
	for _, m := range methods {
		if m.RepoWriteCalls > 0 {
			report.RepoWriteCallsites += m.RepoWriteCalls
			report.LedgerRepoWriteCallsites += m.LedgerRepoWrites
			report.MethodsWithRepoWrites = append(report.MethodsWithRepoWrites, m)
		}
		if m.AggregateWriteCalls > 0 {
			report.AggregateWriteCallsites += m.AggregateWriteCalls
			report.MethodsWithAggregates = append(report.MethodsWithAggregates, m)
		}
	}

	repoKeys := map[string]repoField{}
	aggKeys := map[string]bool{}
	for structName, sf := range fieldsByStruct {
		for path, rf := range sf.Repos {
			repoKeys[structName+"."+path] = rf
		}
		for path, agg := range sf.Aggregates {
			aggKeys[structName+"."+path+" ("+agg+")"] = true
		}
	}
	for _, k := range sortedKeys(boolKeys(repoKeys)) {
		rf := repoKeys[k]
		rf.Path = k
		report.RepoFieldInventory = append(report.RepoFieldInventory, rf)
	}
	report.AggregateFieldInventory = sortedKeys(aggKeys)
	return report
}

func recvInfo(field *ast.Field) (string, string) {
	if field == nil || len(field.Names) == 0 {
		return "", ""
	}
	recvName := field.Names[0].Name
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return recvName, id.Name
		}
	case *ast.Ident:
		return recvName, t.Name
	}
	return "", ""
}

// areaForRepoType maps a repository type to its owning area. Ledger-owned
// repositories must only be written inside an aggregate transaction.
func areaForRepoType(repoType string) (string, bool) {
	switch repoType {
	case "EnrollmentRepo", "EnrollmentLessonRepo":
		return "Enrollment", true
	case "PaymentRepo", "CheckoutSessionRepo":
		return "Payments", true
	case "CertificateRepo":
		return "Certification", true
	case "CourseRepo", "ModuleRepo", "LessonRepo", "ReviewRepo":
		return "Catalog", false
	case "UserRepo":
		return "Users", false
	default:
		return "Unknown", false
	}
}

func boolKeys[V any](m map[string]V) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
