package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPatientData(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{
			name: "P12345",
			id:   "P12345",
			want: "Prontuário de P12345:\n" +
				"  - Paciente masculino, 65 anos.\n" +
				"  - Glicemia atual: 150 mg/dL.\n" +
				"  - Alergias: Penicilina.\n" +
				"  - Exames Pendentes: Hemocultura (coleta há 2 horas).",
		},
		{
			name: "P67890",
			id:   "P67890",
			want: "Prontuário de P67890:\n" +
				"  - Paciente feminino, 40 anos.\n" +
				"  - Histórico: Dor abdominal aguda.\n" +
				"  - Conduta: Solicitado Ultrassom abdominal.",
		},
		{
			name: "unknown id",
			id:   "X999",
			want: "Paciente X999 não encontrado ou sem dados urgentes.",
		},
		{
			name: "ids are case sensitive",
			id:   "p12345",
			want: "Paciente p12345 não encontrado ou sem dados urgentes.",
		},
		{
			name: "empty id",
			id:   "",
			want: "Paciente  não encontrado ou sem dados urgentes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FetchPatientData(tt.id))
		})
	}
}

func TestLookup(t *testing.T) {
	r, ok := Lookup("P67890").Get()
	require.True(t, ok)
	assert.Equal(t, "P67890", r.ID)
	assert.Len(t, r.Lines, 3)

	assert.True(t, Lookup("nope").IsAbsent())
}

func TestGet_NotFound(t *testing.T) {
	_, err := Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
