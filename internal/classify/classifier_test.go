package classify

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func pairs(kv ...string) domain.ExtractedData {
	var f domain.Fields
	for i := 0; i+1 < len(kv); i += 2 {
		f.Set(kv[i], kv[i+1])
	}
	return domain.ExtractedData{KeyValuePairs: f}
}

func TestValidateFields(t *testing.T) {
	t.Run("EmptyPairs", func(t *testing.T) {
		result := ValidateFields(domain.ExtractedData{})

		if result.ValidFields == nil || result.InvalidFields == nil || result.Warnings == nil {
			t.Fatal("expected non-nil buckets")
		}
		if len(result.ValidFields)+len(result.InvalidFields)+len(result.Warnings) != 0 {
			t.Errorf("expected empty buckets, got %+v", result)
		}
	})

	t.Run("NotConfiguredPayload", func(t *testing.T) {
		result := ValidateFields(domain.ExtractedData{Error: "Document Intelligence client nao configurado"})
		if len(result.ValidFields)+len(result.InvalidFields)+len(result.Warnings) != 0 {
			t.Errorf("expected empty buckets, got %+v", result)
		}
	})

	t.Run("Buckets", func(t *testing.T) {
		c := NewClassifier(fixedClock)
		result := c.Validate("", pairs(
			"Nome", "Maria",
			"CPF do titular", "111.444.777-35",
			"cpf conjuge", "123.456.789-00",
			"CNPJ", "12.345.678/0001-00",
			"CNPJ filial", "123",
			"Data de emissao", "01/01/2020",
			"Due Date", "01/01/2030",
			"Valor", "R$ 10,00",
		))

		expected := domain.ValidationResult{
			ValidFields:   []string{"CPF: 111.444.777-35", "CNPJ: 12.345.678/0001-00", "Data: 01/01/2020"},
			InvalidFields: []string{"CPF invalido: 123.456.789-00", "CNPJ invalido: 123"},
			Warnings:      []string{"Data suspeita: 01/01/2030"},
		}
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result:\n got: %+v\nwant: %+v", result, expected)
		}
	})

	t.Run("Precedence", func(t *testing.T) {
		c := NewClassifier(fixedClock)

		// cpf wins over cnpj and date in the same key
		result := c.Validate("", pairs("CPF/CNPJ data", "11144477735"))
		if !reflect.DeepEqual(result.ValidFields, []string{"CPF: 11144477735"}) {
			t.Errorf("expected cpf precedence, got %+v", result)
		}

		// cnpj wins over date
		result = c.Validate("", pairs("cnpj data", "01/01/2020"))
		if !reflect.DeepEqual(result.InvalidFields, []string{"CNPJ invalido: 01/01/2020"}) {
			t.Errorf("expected cnpj precedence, got %+v", result)
		}
	})

	t.Run("DateFailureIsWarning", func(t *testing.T) {
		c := NewClassifier(fixedClock)
		result := c.Validate("", pairs("Data", "ontem"))

		if len(result.InvalidFields) != 0 {
			t.Errorf("expected no invalid fields, got %v", result.InvalidFields)
		}
		if !reflect.DeepEqual(result.Warnings, []string{"Data suspeita: ontem"}) {
			t.Errorf("expected date warning, got %v", result.Warnings)
		}
	})

	t.Run("ValueWithPercentSign", func(t *testing.T) {
		c := NewClassifier(fixedClock)
		result := c.Validate("", pairs("CPF", "100%"))
		if !reflect.DeepEqual(result.InvalidFields, []string{"CPF invalido: 100%"}) {
			t.Errorf("expected literal value in label, got %v", result.InvalidFields)
		}
	})
}

func TestCompiler(t *testing.T) {
	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("failed to create compiler: %v", err)
	}

	t.Run("RejectsBuiltinID", func(t *testing.T) {
		err := compiler.Validate(&domain.FieldRule{ID: "cpf", Expression: `key.contains("x")`, Validator: "cpf"})
		if err == nil {
			t.Error("expected reserved id to be rejected")
		}
	})

	t.Run("RejectsUnknownValidator", func(t *testing.T) {
		err := compiler.Validate(&domain.FieldRule{ID: "r1", Expression: `key.contains("x")`, Validator: "iban"})
		if err == nil {
			t.Error("expected unknown validator to be rejected")
		}
	})

	t.Run("RejectsNonBoolExpression", func(t *testing.T) {
		err := compiler.Validate(&domain.FieldRule{ID: "r1", Expression: `size(key)`, Validator: "cpf"})
		if err == nil {
			t.Error("expected non-bool expression to be rejected")
		}
	})

	t.Run("RejectsSyntaxError", func(t *testing.T) {
		err := compiler.Validate(&domain.FieldRule{ID: "r1", Expression: `key.contains(`, Validator: "cpf"})
		if err == nil {
			t.Error("expected syntax error")
		}
	})

	t.Run("RejectsUnknownSeverity", func(t *testing.T) {
		err := compiler.Validate(&domain.FieldRule{ID: "r1", Expression: `true`, Validator: "cpf", Severity: "fatal"})
		if err == nil {
			t.Error("expected unknown severity to be rejected")
		}
	})

	t.Run("RejectsLabelWithoutPlaceholder", func(t *testing.T) {
		cases := []*domain.FieldRule{
			{ID: "r1", Expression: `true`, Validator: "cpf", ValidLabel: "Inscricao ok"},
			{ID: "r2", Expression: `true`, Validator: "cpf", FailLabel: "Inscricao invalida"},
		}
		for _, rule := range cases {
			if err := compiler.Validate(rule); err == nil {
				t.Errorf("%s: expected label without %%s to be rejected", rule.ID)
			}
		}

		ok := &domain.FieldRule{ID: "r3", Expression: `true`, Validator: "cpf", ValidLabel: "Inscricao: %s", FailLabel: "Inscricao invalida: %s"}
		if err := compiler.Validate(ok); err != nil {
			t.Errorf("expected labels with %%s to compile, got %v", err)
		}
	})

	t.Run("CompileAllOrdersByPriority", func(t *testing.T) {
		kinds, err := compiler.CompileAll([]*domain.FieldRule{
			{ID: "b", Expression: `true`, Validator: "cpf", Priority: 2, Enabled: true},
			{ID: "disabled", Expression: `true`, Validator: "cpf", Priority: 0, Enabled: false},
			{ID: "a", Expression: `true`, Validator: "cpf", Priority: 2, Enabled: true},
			{ID: "c", Expression: `true`, Validator: "cpf", Priority: 1, Enabled: true},
		})
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}

		var ids []string
		for _, k := range kinds {
			ids = append(ids, k.ID)
		}
		if !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
			t.Errorf("expected order c,a,b, got %v", ids)
		}
	})
}

func TestCustomKinds(t *testing.T) {
	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("failed to create compiler: %v", err)
	}

	kinds, err := compiler.CompileAll([]*domain.FieldRule{
		{
			ID:         "cnpj-empresa",
			Name:       "Empresa",
			Expression: `key.contains("inscricao")`,
			Validator:  "cnpj_checksum",
			ValidLabel: "Inscricao: %s",
			FailLabel:  "Inscricao invalida: %s",
			Enabled:    true,
		},
		{
			ID:         "vencimento",
			Name:       "Vencimento",
			Expression: `raw_key == "Vencimento"`,
			Validator:  "date",
			Severity:   domain.SeverityWarning,
			Enabled:    true,
		},
		{
			// Would claim CPF keys, but built-in kinds always run first.
			ID:         "shadow",
			Expression: `key.contains("cpf")`,
			Validator:  "cnpj",
			Enabled:    true,
		},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	c := NewClassifier(fixedClock)
	c.SetCustomKinds("tenant-a", kinds)

	data := pairs(
		"CPF", "11144477735",
		"Inscricao estadual", "11.222.333/0001-81",
		"Inscricao municipal", "11.222.333/0001-82",
		"Vencimento", "2030-01-01",
		"vencimento", "2030-01-01",
	)

	t.Run("TenantRules", func(t *testing.T) {
		result := c.Validate("tenant-a", data)

		expected := domain.ValidationResult{
			ValidFields:   []string{"CPF: 11144477735", "Inscricao: 11.222.333/0001-81"},
			InvalidFields: []string{"Inscricao invalida: 11.222.333/0001-82"},
			Warnings:      []string{"Vencimento invalido: 2030-01-01"},
		}
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result:\n got: %+v\nwant: %+v", result, expected)
		}
	})

	t.Run("OtherTenantUnaffected", func(t *testing.T) {
		result := c.Validate("tenant-b", data)

		expected := domain.ValidationResult{
			ValidFields:   []string{"CPF: 11144477735"},
			InvalidFields: []string{},
			Warnings:      []string{},
		}
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("unexpected result:\n got: %+v\nwant: %+v", result, expected)
		}
	})

	t.Run("GlobalFallback", func(t *testing.T) {
		c.SetCustomKinds(domain.GlobalTenantID, kinds[:1])
		defer c.SetCustomKinds(domain.GlobalTenantID, nil)

		if c.CustomCount("tenant-b") != 1 {
			t.Errorf("expected tenant-b to use the global kinds, got %d", c.CustomCount("tenant-b"))
		}
		if c.CustomCount("tenant-a") != 3 {
			t.Errorf("expected tenant-a to keep its own kinds, got %d", c.CustomCount("tenant-a"))
		}
	})

	t.Run("Outcomes", func(t *testing.T) {
		outcomes := c.Outcomes("tenant-a", data)
		expected := []Outcome{
			{Kind: "cpf", Bucket: "valid"},
			{Kind: "cnpj-empresa", Bucket: "valid"},
			{Kind: "cnpj-empresa", Bucket: "invalid"},
			{Kind: "vencimento", Bucket: "warning"},
		}
		if !reflect.DeepEqual(outcomes, expected) {
			t.Errorf("unexpected outcomes: %+v", outcomes)
		}
	})

	t.Run("OutcomesMatchBucketsAcrossMidnight", func(t *testing.T) {
		// Each clock reading moves a day ahead, so a second reading would
		// turn the date below from a warning into a valid field.
		calls := 0
		clock := func() time.Time {
			calls++
			return fixedNow.AddDate(0, 0, calls-1)
		}
		dc := NewClassifier(clock)
		data := pairs("Data de emissao", "16/06/2025", "CPF", "123")

		result, outcomes := dc.ValidateWithOutcomes("", data)

		if calls != 1 {
			t.Errorf("expected a single clock reading, got %d", calls)
		}
		if !reflect.DeepEqual(result.Warnings, []string{"Data suspeita: 16/06/2025"}) {
			t.Errorf("unexpected warnings: %v", result.Warnings)
		}
		expected := []Outcome{
			{Kind: KindDate, Bucket: "warning"},
			{Kind: KindCPF, Bucket: "invalid"},
		}
		if !reflect.DeepEqual(outcomes, expected) {
			t.Errorf("unexpected outcomes: %+v", outcomes)
		}
	})
}

type fakeLister struct {
	rules []*domain.FieldRule
	err   error
}

func (f *fakeLister) ListFieldRules(ctx context.Context, tenantID string) ([]*domain.FieldRule, error) {
	return f.rules, f.err
}

func TestReload(t *testing.T) {
	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("failed to create compiler: %v", err)
	}
	c := NewClassifier(fixedClock)
	ctx := context.Background()

	lister := &fakeLister{rules: []*domain.FieldRule{
		{ID: "r1", Expression: `key.startsWith("rg")`, Validator: "cpf", Enabled: true},
	}}

	n, err := c.Reload(ctx, compiler, lister, "tenant-a")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if n != 1 || c.CustomCount("tenant-a") != 1 {
		t.Errorf("expected 1 custom kind, got n=%d count=%d", n, c.CustomCount("tenant-a"))
	}

	t.Run("CompileErrorKeepsPrevious", func(t *testing.T) {
		bad := &fakeLister{rules: []*domain.FieldRule{
			{ID: "r2", Expression: `key +`, Validator: "cpf", Enabled: true},
		}}
		if _, err := c.Reload(ctx, compiler, bad, "tenant-a"); err == nil {
			t.Fatal("expected compile error")
		}
		if c.CustomCount("tenant-a") != 1 {
			t.Errorf("expected previous kinds to stay active, got %d", c.CustomCount("tenant-a"))
		}
	})

	t.Run("ListErrorPropagates", func(t *testing.T) {
		boom := errors.New("db down")
		if _, err := c.Reload(ctx, compiler, &fakeLister{err: boom}, "tenant-a"); !errors.Is(err, boom) {
			t.Errorf("expected wrapped list error, got %v", err)
		}
	})
}
