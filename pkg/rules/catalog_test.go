package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/source"
)

// testdataDir returns the absolute path to the testdata directory.
func testdataDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatalf("failed to resolve testdata dir: %v", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatalf("testdata directory does not exist: %s", dir)
	}
	return dir
}

func parseFixture(t *testing.T, name string) *source.SourceUnit {
	t.Helper()
	path := filepath.Join(testdataDir(t), name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	unit, err := source.Parse(path, string(data))
	if err != nil {
		t.Fatalf("Parse %s: %v", name, err)
	}
	return unit
}

func parseText(t *testing.T, path, text string) *source.SourceUnit {
	t.Helper()
	unit, err := source.Parse(path, text)
	if err != nil {
		t.Fatalf("Parse %s: %v", path, err)
	}
	return unit
}

// run applies the enabled built-in rules (all when none are given).
func run(t *testing.T, unit *source.SourceUnit, enabled ...string) []*findings.Finding {
	t.Helper()
	engine, err := Builtin(DefaultOptions()).Engine(enabled)
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	return engine.ApplyAll(unit)
}

type hit struct {
	Rule     string
	Severity string
	Line     int
	Decl     string
}

func hits(ff []*findings.Finding) []hit {
	out := make([]hit, len(ff))
	for i, f := range ff {
		out[i] = hit{f.Rule, f.Severity, f.Line, f.Declaration}
	}
	return out
}

func TestBuiltin_CatalogOrder(t *testing.T) {
	want := []string{
		RulePublicField, RuleUnusedField, RuleUnusedLocal, RuleUnusedParameter,
		RuleUnusedPrivateMethod, RuleTooManyParameters, RuleMagicNumber, RuleEmptyCatch,
		RuleRedundantNullCheck, RuleDeprecatedUsage, RuleRawGenericType, RuleMissingOverride,
		RuleComplexMethod, RuleNamingConvention, RuleUnsafeUnwrap,
	}
	if diff := cmp.Diff(want, Builtin(DefaultOptions()).IDs()); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
	for _, rule := range Builtin(Options{}).Rules() {
		if rule.Description == "" || len(rule.Languages) == 0 {
			t.Errorf("rule %s: description %q languages %v", rule.ID, rule.Description, rule.Languages)
		}
	}
}

func TestBuiltin_JavaFixture(t *testing.T) {
	got := hits(run(t, parseFixture(t, "QualityDemo.java")))

	want := []hit{
		{RulePublicField, findings.SevWarn, 13, "publicField"},
		{RuleUnusedField, findings.SevWarn, 16, "unusedField"},
		{RuleUnusedLocal, findings.SevWarn, 58, "unused"},
		{RuleTooManyParameters, findings.SevWarn, 19, "tooManyParameters"},
		{RuleMagicNumber, findings.SevInfo, 25, "magicNumbers"},
		{RuleMagicNumber, findings.SevInfo, 25, "magicNumbers"},
		{RuleMagicNumber, findings.SevInfo, 25, "magicNumbers"},
		{RuleEmptyCatch, findings.SevWarn, 32, "emptyCatch"},
		{RuleRedundantNullCheck, findings.SevWarn, 39, "redundantNullCheck"},
		{RuleDeprecatedUsage, findings.SevInfo, 53, "usingDeprecatedMethod"},
		{RuleRawGenericType, findings.SevInfo, 64, "rawTypeUsage"},
		{RuleMissingOverride, findings.SevInfo, 69, "toString"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltin_KotlinFixture(t *testing.T) {
	got := hits(run(t, parseFixture(t, "Smells.kt")))

	want := []hit{
		{RuleUnusedField, findings.SevWarn, 7, "unusedDependency"},
		{RuleUnusedField, findings.SevWarn, 10, "unusedProperty"},
		{RuleUnusedLocal, findings.SevWarn, 59, "leftover"},
		{RuleTooManyParameters, findings.SevWarn, 30, "manyParameters"},
		{RuleMagicNumber, findings.SevInfo, 15, "calculate"},
		{RuleEmptyCatch, findings.SevWarn, 25, "poorErrorHandling"},
		{RuleRedundantNullCheck, findings.SevWarn, 52, "doubleCheck"},
		{RuleDeprecatedUsage, findings.SevInfo, 48, "callsLegacy"},
		{RuleNamingConvention, findings.SevInfo, 58, "method_with_underscore"},
		{RuleUnsafeUnwrap, findings.SevWarn, 19, "riskyUnwrap"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltin_FixtureDetails(t *testing.T) {
	ff := run(t, parseFixture(t, "QualityDemo.java"))

	byRule := make(map[string][]*findings.Finding)
	for _, f := range ff {
		byRule[f.Rule] = append(byRule[f.Rule], f)
	}

	var values []string
	for _, f := range byRule[RuleMagicNumber] {
		values = append(values, f.Metadata["value"])
	}
	if diff := cmp.Diff([]string{"42", "100", "256"}, values); diff != "" {
		t.Errorf("magic numbers (-want +got):\n%s", diff)
	}

	params := byRule[RuleTooManyParameters][0]
	if params.Metadata["params"] != "7" || params.Metadata["max"] != "5" {
		t.Errorf("too-many-parameters metadata = %v", params.Metadata)
	}
	if got := byRule[RuleEmptyCatch][0].Message; got != "catch (Exception e) swallows the exception" {
		t.Errorf("empty-catch message = %q", got)
	}
	if got := byRule[RuleRedundantNullCheck][0].Metadata["check"]; got != "value != null" {
		t.Errorf("redundant-null-check check = %q", got)
	}
	if got := byRule[RuleDeprecatedUsage][0].Metadata["target"]; got != "deprecatedMethod" {
		t.Errorf("deprecated-usage target = %q", got)
	}
	if got := byRule[RuleRawGenericType][0].Metadata["type"]; got != "List" {
		t.Errorf("raw-generic-type type = %q", got)
	}
	for _, f := range ff {
		if f.FilePath != filepath.Join(testdataDir(t), "QualityDemo.java") || f.Language != source.LangJava {
			t.Errorf("finding %s: file %q language %q", f.Rule, f.FilePath, f.Language)
		}
	}
}

func TestTooManyParameters(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   int
	}{
		{"seven", "int a, int b, int c, int d, int e, int f, int g", 1},
		{"six", "int a, int b, int c, int d, int e, int f", 1},
		{"five", "int a, int b, int c, int d, int e", 0},
		{"none", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := parseText(t, "P.java", "class P {\n  void m("+tt.params+") {}\n}\n")
			if got := len(run(t, unit, RuleTooManyParameters)); got != tt.want {
				t.Fatalf("findings = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTooManyParameters_Constructors(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want []hit
	}{
		{
			"kotlin primary",
			"F.kt",
			"class F(val a: Int, val b: Int, val c: Int, val d: Int, val e: Int, val f: Int) {\n  fun sum() = a + b + c + d + e + f\n}\n",
			[]hit{{RuleTooManyParameters, findings.SevWarn, 1, "F"}},
		},
		{
			"kotlin primary within limit",
			"F.kt",
			"class F(val a: Int, b: Int)\n",
			nil,
		},
		{
			"kotlin secondary",
			"F.kt",
			"class F {\n  constructor(a: Int, b: Int, c: Int, d: Int, e: Int, f: Int) {\n    println(a + b + c + d + e + f)\n  }\n}\n",
			[]hit{{RuleTooManyParameters, findings.SevWarn, 2, "F"}},
		},
		{
			"java record",
			"R.java",
			"record R(int a, int b, int c, int d, int e, int f) {}\n",
			[]hit{{RuleTooManyParameters, findings.SevWarn, 1, "R"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hits(run(t, parseText(t, tt.path, tt.src), RuleTooManyParameters))
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("findings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTooManyParameters_CustomMax(t *testing.T) {
	unit := parseText(t, "P.java", "class P {\n  void m(int a, int b, int c) {}\n}\n")
	engine, err := Builtin(Options{MaxParameters: 2}).Engine([]string{RuleTooManyParameters})
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if got := len(engine.ApplyAll(unit)); got != 1 {
		t.Fatalf("findings = %d, want 1", got)
	}
}

func TestEmptyCatch(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want int
	}{
		{"empty", "C.java", "class C {\n  void m() {\n    try { run(); } catch (Exception e) {\n    }\n  }\n}\n", 1},
		{"comment only", "C.java", "class C {\n  void m() {\n    try { run(); } catch (Exception e) { /* ignored */ }\n  }\n}\n", 1},
		{"logs", "C.java", "class C {\n  void m() {\n    try { run(); } catch (Exception e) { log.warn(\"failed\", e); }\n  }\n}\n", 0},
		{"nested empty", "C.java", "class C {\n  void m() {\n    try { run(); } catch (Exception e) {\n      try { x(); } catch (Error err) {}\n      log(e);\n    }\n  }\n}\n", 1},
		{"kotlin empty", "C.kt", "class C {\n  fun m() {\n    try { run() } catch (e: Exception) {}\n  }\n}\n", 1},
		{"kotlin handled", "C.kt", "class C {\n  fun m() {\n    try { run() } catch (e: Exception) {\n      println(e)\n    }\n  }\n}\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ff := run(t, parseText(t, tt.path, tt.src), RuleEmptyCatch)
			if len(ff) != tt.want {
				t.Fatalf("findings = %d, want %d: %+v", len(ff), tt.want, ff)
			}
		})
	}
}

func TestRedundantNullCheck(t *testing.T) {
	tests := []struct {
		name string
		cond string
		want int
	}{
		{"duplicate", "value != null && value != null", 1},
		{"distinct", "value != null && value.length() > 0", 0},
		{"reversed", "value != null && null != value", 1},
		{"parenthesised", "(value != null) && value != null", 1},
		{"or breaks chain", "value != null || value != null", 0},
		{"different operands", "a != null && b != null", 0},
		{"triple reports once", "a != null && a != null && a != null", 1},
		{"equality", "a == null && a == null", 1},
		{"nested group", "ok && (a != null && a != null)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class N {\n  boolean m(String value, String a, String b, boolean ok) {\n    if (" + tt.cond + ") {\n      return true;\n    }\n    return false;\n  }\n}\n"
			ff := run(t, parseText(t, "N.java", src), RuleRedundantNullCheck)
			if len(ff) != tt.want {
				t.Fatalf("findings = %d, want %d", len(ff), tt.want)
			}
			if tt.want == 1 && ff[0].Line != 3 {
				t.Errorf("line = %d, want 3", ff[0].Line)
			}
		})
	}
}

func TestRedundantNullCheck_SeparateStatements(t *testing.T) {
	src := "class N {\n  void m(String a) {\n    boolean x = a != null;\n    boolean y = a != null;\n  }\n}\n"
	if ff := run(t, parseText(t, "N.java", src), RuleRedundantNullCheck); len(ff) != 0 {
		t.Fatalf("findings = %+v, want none", ff)
	}
}

func TestRawGenericType(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"raw declaration", "List list = new ArrayList();", 1},
		{"typed", "List<String> list = new ArrayList<>();", 0},
		{"raw instantiation only", "List<String> list = new ArrayList();", 1},
		{"static call", "List<String> list = List.of(\"a\");", 0},
		{"instanceof", "boolean b = o instanceof List;", 0},
		{"two statements", "Map m = new HashMap();\nSet s = new HashSet();", 2},
		{"nested raw argument", "Map<String, List> m = null;", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "import java.util.*;\nclass R {\n  void m(Object o) {\n    " + tt.body + "\n  }\n}\n"
			ff := run(t, parseText(t, "R.java", src), RuleRawGenericType)
			if len(ff) != tt.want {
				t.Fatalf("findings = %d, want %d: %+v", len(ff), tt.want, ff)
			}
		})
	}
}

func TestRawGenericType_Signatures(t *testing.T) {
	src := "class R {\n  private Map cache;\n  private Map<String, String> typed;\n  List names(Collection<String> in) { return null; }\n  void take(Set s) {}\n}\n"
	got := hits(run(t, parseText(t, "R.java", src), RuleRawGenericType))
	want := []hit{
		{RuleRawGenericType, findings.SevInfo, 2, "cache"},
		{RuleRawGenericType, findings.SevInfo, 4, "names"},
		{RuleRawGenericType, findings.SevInfo, 5, "take"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestMagicNumber(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"allowed", "class M {\n  int m() { return 0 + 1 - 1; }\n}\n", nil},
		{"negative", "class M {\n  int m() { return -7; }\n}\n", []string{"-7"}},
		{"constant field", "class M {\n  static final int LIMIT = 64;\n}\n", nil},
		{"mutable field", "class M {\n  int limit = 64;\n}\n", []string{"64"}},
		{"final local", "class M {\n  int m() { final int n = 12; return n; }\n}\n", nil},
		{"annotation argument", "class M {\n  void m() { @SuppressWarnings(value = 3) int x = 0; }\n}\n", nil},
		{"suffixes", "class M {\n  void m() { f(1L, 0x0, 1.0f, 2.5d, 1_000); }\n}\n", []string{"2.5d", "1_000"}},
		{"kotlin const", "const val N = 9\nclass M {\n  fun m() = N * 2\n}\n", []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "M.java"
			if tt.name == "kotlin const" {
				path = "M.kt"
			}
			var got []string
			for _, f := range run(t, parseText(t, path, tt.src), RuleMagicNumber) {
				got = append(got, f.Metadata["value"])
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("magic numbers (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"0", 0, true},
		{"1L", 1, true},
		{"0x1F", 31, true},
		{"0b101", 5, true},
		{"1_000", 1000, true},
		{"2.5f", 2.5, true},
		{"1e3", 1000, true},
		{"0xZZ", 0, false},
	}
	for _, tt := range tests {
		got, ok := numericValue(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("numericValue(%q) = %v, %v; want %v, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPublicField_AccessorPair(t *testing.T) {
	src := `class Bean {
  public String name;
  public String label;
  public static final String KIND = "bean";
  public String getName() { return name; }
  public void setName(String name) { this.name = name; }
  public String getLabel() { return label; }
}
`
	got := hits(run(t, parseText(t, "Bean.java", src), RulePublicField))
	want := []hit{{RulePublicField, findings.SevWarn, 3, "label"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestUnused_Exemptions(t *testing.T) {
	src := `class U implements java.io.Serializable {
  private static final long serialVersionUID = 1L;
  private int used;
  int packagePrivate;
  int read() { int tmp = used; return tmp; }
}
`
	if ff := run(t, parseText(t, "U.java", src), RuleUnusedField, RuleUnusedLocal); len(ff) != 0 {
		t.Fatalf("findings = %+v, want none", hits(ff))
	}
}

func TestUnusedLocal_KotlinTemplate(t *testing.T) {
	src := "class T {\n  fun m(): String {\n    val who = \"world\"\n    val n = 2\n    return \"hello $who ${n + 1}\"\n  }\n}\n"
	if ff := run(t, parseText(t, "T.kt", src), RuleUnusedLocal); len(ff) != 0 {
		t.Fatalf("findings = %+v, want none", hits(ff))
	}
}

func TestMissingOverride(t *testing.T) {
	src := `class O {
  @Override
  public String toString() { return ""; }
  public int hashCode() { return 7; }
  public boolean equals(Object o) { return false; }
  public boolean equals(O a, O b) { return false; }
  public static String toString(int x) { return ""; }
}
`
	got := hits(run(t, parseText(t, "O.java", src), RuleMissingOverride))
	want := []hit{
		{RuleMissingOverride, findings.SevInfo, 4, "hashCode"},
		{RuleMissingOverride, findings.SevInfo, 5, "equals"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingOverride_AnonymousClass(t *testing.T) {
	src := `class A {
  Object make() {
    return new Object() {
      public String toString() { return "anon"; }
    };
  }
  Runnable task = new Runnable() {
    public void run() {}
    public int hashCode() { return 1; }
  };
}
`
	got := hits(run(t, parseText(t, "A.java", src), RuleMissingOverride))
	want := []hit{
		{RuleMissingOverride, findings.SevInfo, 4, "toString"},
		{RuleMissingOverride, findings.SevInfo, 9, "hashCode"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestUnused_KotlinFixture(t *testing.T) {
	unit := parseFixture(t, "Unused.kt")
	ff := run(t, unit, RuleUnusedParameter, RuleUnusedPrivateMethod)

	want := []hit{
		{RuleUnusedParameter, findings.SevWarn, 9, "unusedParameterFunction"},
		{RuleUnusedParameter, findings.SevWarn, 13, "methodWithUnusedParameter"},
		{RuleUnusedPrivateMethod, findings.SevWarn, 27, "neverCalledFunction"},
	}
	if diff := cmp.Diff(want, hits(ff)); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
	var params []string
	for _, f := range ff[:2] {
		params = append(params, f.Metadata["parameter"])
	}
	if diff := cmp.Diff([]string{"unusedParam", "unused"}, params); diff != "" {
		t.Errorf("parameters (-want +got):\n%s", diff)
	}
}

func TestUnusedParameter(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want []string
	}{
		{"java unused", "P.java", "class P {\n  int m(int a, int b) { return a; }\n}\n", []string{"b"}},
		{"java all used", "P.java", "class P {\n  int m(int a, int b) { return a + b; }\n}\n", nil},
		{"java empty body", "P.java", "class P {\n  void m(int a) {}\n}\n", []string{"a"}},
		{"java override", "P.java", "class P {\n  @Override\n  public boolean equals(Object o) { return false; }\n}\n", nil},
		{"java abstract", "P.java", "abstract class P {\n  abstract void m(int a);\n}\n", nil},
		{"java interface", "P.java", "interface P {\n  void m(int a);\n}\n", nil},
		{"java native", "P.java", "class P {\n  native void m(int a);\n}\n", nil},
		{"java varargs", "P.java", "class P {\n  int m(String... rest) { return rest.length; }\n}\n", nil},
		{"java captured by anonymous class", "P.java", "class P {\n  Runnable m(int a) {\n    return new Runnable() { public void run() { System.out.println(a); } };\n  }\n}\n", nil},
		{"java two methods one line", "P.java", "class P {\n  void m(int a) {} void n(int a) { use(a); }\n}\n", []string{"a"}},
		{"kotlin override", "P.kt", "class P : Base() {\n  override fun m(a: Int) {}\n}\n", nil},
		{"kotlin expression body", "P.kt", "class P {\n  fun m(a: Int, b: Int) = a * 2\n}\n", []string{"b"}},
		{"kotlin template", "P.kt", "class P {\n  fun m(who: String): String {\n    return \"hi ${who.uppercase()}\"\n  }\n}\n", nil},
		{"kotlin delegating constructor", "P.kt", "class P(val a: Int, val b: Int) {\n  constructor(a: Int) : this(a, 0) {\n    println(\"secondary\")\n  }\n}\n", nil},
		{"kotlin primary constructor", "P.kt", "class P(a: Int)\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, f := range run(t, parseText(t, tt.path, tt.src), RuleUnusedParameter) {
				got = append(got, f.Metadata["parameter"])
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unused parameters (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnusedPrivateMethod(t *testing.T) {
	src := `class S implements java.io.Serializable {
  private void writeObject(java.io.ObjectOutputStream out) throws java.io.IOException { out.defaultWriteObject(); }
  private S() {}
  private int helper() { return 1; }
  private int orphan() { return 2; }
  public int value() { return helper(); }
  private void recurse() { recurse(); }
}
`
	got := hits(run(t, parseText(t, "S.java", src), RuleUnusedPrivateMethod))
	want := []hit{{RuleUnusedPrivateMethod, findings.SevWarn, 5, "orphan"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestDeprecatedUsage_SkipsDeprecatedCallers(t *testing.T) {
	src := `class D {
  @Deprecated void old() {}
  @Deprecated void older() { old(); }
  void fresh() { old(); old(); }
}
`
	got := hits(run(t, parseText(t, "D.java", src), RuleDeprecatedUsage))
	want := []hit{
		{RuleDeprecatedUsage, findings.SevInfo, 4, "fresh"},
		{RuleDeprecatedUsage, findings.SevInfo, 4, "fresh"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestNamingConvention(t *testing.T) {
	src := "class N {\n  static final int MAX_SIZE = 3;\n  int bad_field;\n  void do_it() {}\n  void doIt() {}\n}\n"
	got := hits(run(t, parseText(t, "N.java", src), RuleNamingConvention))
	want := []hit{
		{RuleNamingConvention, findings.SevInfo, 3, "bad_field"},
		{RuleNamingConvention, findings.SevInfo, 4, "do_it"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsafeUnwrap(t *testing.T) {
	src := "class W {\n  private val cached = System.getenv(\"HOME\")!!\n  fun m(a: String?, b: String?): Int {\n    return a!!.length + b!!.length\n  }\n}\n"
	var lines []int
	for _, f := range run(t, parseText(t, "W.kt", src), RuleUnsafeUnwrap) {
		lines = append(lines, f.Line)
	}
	if diff := cmp.Diff([]int{2, 4, 4}, lines); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}

func TestComplexMethod(t *testing.T) {
	branchy := `class X {
  int score(int a, int b) {
    int s = 0;
    if (a > 0) s++;
    if (b > 0) s++;
    for (int i = 0; i < a; i++) {
      while (b > i) { b--; }
    }
    switch (a) {
      case 1: s += 1; break;
      case 2: s += 2; break;
    }
    try { s /= b; } catch (ArithmeticException e) { s = 0; }
    return a > 0 && b > 0 || s > 0 ? s : -s;
  }
  int simple() { return 1; }
}
`
	for _, tc := range []struct {
		name string
		opts Options
	}{
		{"tree-sitter", DefaultOptions()},
		{"tokens", Options{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := Builtin(tc.opts).Engine([]string{RuleComplexMethod})
			if err != nil {
				t.Fatalf("Engine: %v", err)
			}
			ff := engine.ApplyAll(parseText(t, "X.java", branchy))
			got := hits(ff)
			want := []hit{{RuleComplexMethod, findings.SevWarn, 2, "score"}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("findings mismatch (-want +got):\n%s", diff)
			}
			if ff[0].Metadata["complexity"] != "11" || ff[0].Metadata["threshold"] != "10" {
				t.Errorf("metadata = %v", ff[0].Metadata)
			}
		})
	}
}

func TestTokenComplexity_Kotlin(t *testing.T) {
	src := `class K {
  fun classify(x: Int?): String {
    val v = x ?: 0
    return when {
      v < 0 -> "neg"
      v == 0 -> "zero"
      v > 100 && v < 1000 -> "big"
      else -> "pos"
    }
  }
}
`
	unit := parseText(t, "K.kt", src)
	m := unit.Kind(source.KindMethod)[0]
	// 1 + elvis + && + three non-else branches
	if got := tokenComplexity(methodTokens(m), source.LangKotlin); got != 6 {
		t.Fatalf("complexity = %d, want 6", got)
	}
}

func TestIsTernary(t *testing.T) {
	toks, err := source.Lex("List<? extends T> l = ok ? a : b;", source.LangJava)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	var ternaries int
	for i, tok := range toks {
		if tok.Is("?") && isTernary(toks, i) {
			ternaries++
		}
	}
	if ternaries != 1 {
		t.Fatalf("ternaries = %d, want 1", ternaries)
	}
}
