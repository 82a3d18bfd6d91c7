package decoder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_DebitCreditNormalization(t *testing.T) {
	data := []byte("date,debit,credit,description\n2024-03-01,100,,Groceries\n2024-03-02,,100,Salary\n")

	set, err := ParseCSV(data)
	require.NoError(t, err)

	assert.True(t, set.HasHeader)
	assert.Equal(t, []string{"date", "amount", "description"}, set.Columns)
	require.Len(t, set.Rows, 2)
	assert.Equal(t, []string{"2024-03-01", "-100", "Groceries"}, set.Rows[0])
	assert.Equal(t, []string{"2024-03-02", "100", "Salary"}, set.Rows[1])
}

func TestParseCSV_KeepsUnifiedAmount(t *testing.T) {
	data := []byte("Сумма;Дата;Дебет;Остаток\n-250,50;01.03.2024;250,50;1000\n")

	set, err := ParseCSV(data)
	require.NoError(t, err)

	assert.Equal(t, ';', set.Delimiter)
	assert.Equal(t, []string{"date", "amount", "debit", "balance"}, set.Columns)
	assert.Equal(t, []string{"01.03.2024", "-250,50", "250,50", "1000"}, set.Rows[0])
}

func TestParseCSV_HeaderSynonymPrefix(t *testing.T) {
	data := []byte("Дата операции\tСумма операции, руб\tНазначение платежа\tMCC\n01.03.2024\t-500\tПятерочка\t5411\n")

	set, err := ParseCSV(data)
	require.NoError(t, err)

	assert.Equal(t, '\t', set.Delimiter)
	assert.Equal(t, []string{"date", "amount", "description", "mcc"}, set.Columns)
}

func TestParseCSV_NoHeader(t *testing.T) {
	data := []byte("2024-03-01|-500|Coffee\n2024-03-02|-120|Bus|extra\n")

	set, err := ParseCSV(data)
	require.NoError(t, err)

	assert.False(t, set.HasHeader)
	assert.Equal(t, '|', set.Delimiter)
	assert.Equal(t, []string{"col_1", "col_2", "col_3", "col_4"}, set.Columns)
	assert.Equal(t, []string{"2024-03-01", "-500", "Coffee", ""}, set.Rows[0])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV([]byte("\n\n ,, \n"))
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestRowSet_Render(t *testing.T) {
	set := &RowSet{
		Columns: []string{"date", "amount"},
		Rows:    [][]string{{"2024-03-01", "-100"}},
	}
	text, err := set.Render()
	require.NoError(t, err)
	assert.Equal(t, "date,amount\n2024-03-01,-100", text)
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"100", "100", true},
		{"-1 234,56", "-1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{"+100 ₽", "100", true},
		{"−42,10", "-42.1", true},
		{"1 000", "1000", true},
		{"", "", false},
		{"n/a", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			d, ok := ParseAmount(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, d.Equal(decimal.RequireFromString(tc.expected)), d.String())
			}
		})
	}
}

func TestSignedAmount(t *testing.T) {
	assert.Equal(t, "-100", signedAmount("100", ""))
	assert.Equal(t, "-100", signedAmount("-100", ""))
	assert.Equal(t, "100", signedAmount("", "100"))
	assert.Equal(t, "50", signedAmount("50", "100"))
	assert.Equal(t, "", signedAmount("", ""))
}
