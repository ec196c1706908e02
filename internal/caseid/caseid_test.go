package caseid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		want   model.CaseIdentifier
	}{
		{
			name:   "canonical",
			folder: "PD251234_02",
			want:   model.CaseIdentifier{FolderName: "PD251234_02", Year: 2025, CaseNumber: "1234", DiscNumber: "02"},
		},
		{
			name:   "single digit disc is padded",
			folder: "PD2498765_3",
			want:   model.CaseIdentifier{FolderName: "PD2498765_3", Year: 2024, CaseNumber: "98765", DiscNumber: "03"},
		},
		{
			name:   "wide disc kept",
			folder: "PD19007_110",
			want:   model.CaseIdentifier{FolderName: "PD19007_110", Year: 2019, CaseNumber: "007", DiscNumber: "110"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.folder)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, folder := range []string{
		"DiscCase1234",
		"",
		"PD251234",
		"PD25_02",
		"pd251234_02",
		"PD251234_",
		"PD251234_02 copy",
		"PD25A234_02",
		" PD251234_02",
	} {
		t.Run(folder, func(t *testing.T) {
			_, err := Parse(folder)
			assert.ErrorIs(t, err, ErrInvalidFolderName)
		})
	}
}

func TestParse_PDNumberRoundTrip(t *testing.T) {
	id, err := Parse("PD251234_02")
	require.NoError(t, err)
	assert.Equal(t, "PD251234", id.PDNumber())
}
