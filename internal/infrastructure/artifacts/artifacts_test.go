package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/core/features"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/tabular"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseSchemaInfersKindsWhenDtypeMissing(t *testing.T) {
	schema, err := ParseSchema(strings.NewReader("age\nfamily_size\ngender_Male\nemi_gap\tfloat\n"), tabular.FormatText)
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}
	want := []domain.SchemaColumn{
		{Name: "age", Kind: domain.KindNumber},
		{Name: "family_size", Kind: domain.KindInteger},
		{Name: "gender_Male", Kind: domain.KindBoolean},
		{Name: "emi_gap", Kind: domain.KindNumber},
	}
	if len(schema.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(schema.Columns))
	}
	for i := range want {
		if schema.Columns[i] != want[i] {
			t.Fatalf("column %d: expected %+v, got %+v", i, want[i], schema.Columns[i])
		}
	}
}

func TestParseSchemaCSVWithHeaderAndDtype(t *testing.T) {
	schema, err := ParseSchema(strings.NewReader("column,dtype\nage,int64\ngender_Male,bool\n"), tabular.FormatCSV)
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}
	if schema.Len() != 2 || schema.Columns[0].Kind != domain.KindInteger || schema.Columns[1].Kind != domain.KindBoolean {
		t.Fatalf("unexpected schema: %+v", schema)
	}
}

func TestParseSchemaRejectsEmptyAndDuplicate(t *testing.T) {
	for _, content := range []string{"", "# nothing\n", "age\nage\n", "age\tcomplex\n"} {
		if _, err := ParseSchema(strings.NewReader(content), tabular.FormatText); !domain.IsKind(err, domain.ErrConfiguration) {
			t.Fatalf("%q: expected configuration error, got %v", content, err)
		}
	}
}

func TestLoadSchemaFileMissingIsConfigurationError(t *testing.T) {
	_, err := LoadSchemaFile(filepath.Join(t.TempDir(), "feature_columns.txt"))
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadManifestOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "serving.yaml", `
feature_variant: extended
classifier:
  name: clf_v2
  stage: Staging
  serving_url: http://scoring:5001/{name}/{version}
scaler: scaler.yaml
labels:
  approved: Eligible
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.FeatureVariant() != features.VariantExtended {
		t.Fatalf("expected extended variant, got %s", m.Variant)
	}
	if m.Classifier.Ref() != (domain.ModelRef{Name: "clf_v2", Stage: "Staging"}) {
		t.Fatalf("unexpected classifier ref: %+v", m.Classifier)
	}
	if m.Regressor.Name != "max_emi_regressor" || m.Regressor.Stage != domain.StageProduction {
		t.Fatalf("regressor defaults must survive partial manifest: %+v", m.Regressor)
	}
	if m.ScalerPath != filepath.Join(dir, "scaler.yaml") {
		t.Fatalf("expected scaler path relative to manifest, got %s", m.ScalerPath)
	}
	if got := m.Endpoints(); len(got) != 1 || got["clf_v2"] == "" {
		t.Fatalf("unexpected endpoints: %v", got)
	}
	table, err := m.LabelTable()
	if err != nil {
		t.Fatalf("LabelTable() error = %v", err)
	}
	if label, ok := table.Decode(domain.RawPrediction{Value: "approved"}); !ok || label != domain.EligibilityEligible {
		t.Fatalf("expected manifest label, got %q %v", label, ok)
	}
}

func TestManifestLabelTableAllowsCaseVariantWithSameLabel(t *testing.T) {
	m := Manifest{Labels: map[string]string{"ELIGIBLE": "Eligible", "approved": "Eligible"}}
	table, err := m.LabelTable()
	if err != nil {
		t.Fatalf("LabelTable() error = %v", err)
	}
	if label, ok := table.Decode(domain.RawPrediction{Value: "Approved"}); !ok || label != domain.EligibilityEligible {
		t.Fatalf("expected case-insensitive manifest label, got %q %v", label, ok)
	}
}

func TestManifestLabelTableRejectsCaseConflict(t *testing.T) {
	m := Manifest{Labels: map[string]string{"approved": "Eligible", "APPROVED": "High_Risk"}}
	if _, err := m.LabelTable(); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for labels differing only by case, got %v", err)
	}
}

func TestLoadManifestRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"variant.yaml": "feature_variant: fancy\n",
		"label.yaml":   "labels:\n  x: Maybe\n",
		"clash.yaml":   "labels:\n  ELIGIBLE: Not_Eligible\n",
		"model.yaml":   "classifier:\n  name: \"\"\n",
	}
	for name, content := range cases {
		if _, err := LoadManifest(writeFile(t, dir, name, content)); !domain.IsKind(err, domain.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
	if m, err := LoadManifest(""); err != nil || m.FeatureVariant() != features.VariantStandard {
		t.Fatalf("empty path must return defaults, got %+v %v", m, err)
	}
}

func TestLoadScalerValidatesAgainstSchema(t *testing.T) {
	dir := t.TempDir()
	schema := domain.TrainedSchema{Columns: []domain.SchemaColumn{
		{Name: "age", Kind: domain.KindNumber},
		{Name: "gender_Male", Kind: domain.KindBoolean},
	}}

	scaler, err := LoadScaler(writeFile(t, dir, "ok.yaml", "columns:\n  age: {mean: 35, scale: 8.5}\n"), schema)
	if err != nil {
		t.Fatalf("LoadScaler() error = %v", err)
	}
	if scaler.Columns["age"].Scale != 8.5 {
		t.Fatalf("unexpected scaler: %+v", scaler.Columns)
	}

	for name, content := range map[string]string{
		"unknown.yaml": "columns:\n  income: {mean: 1, scale: 1}\n",
		"bool.yaml":    "columns:\n  gender_Male: {mean: 0.5, scale: 0.5}\n",
	} {
		if _, err := LoadScaler(writeFile(t, dir, name, content), schema); !domain.IsKind(err, domain.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}

	if s, err := LoadScaler("", schema); err != nil || !s.Empty() {
		t.Fatalf("empty path must mean no scaler")
	}
}
