package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ProtocolVersion
		wantErr bool
	}{
		{input: "4.13", want: ProtocolVersion{4, 13}},
		{input: "4.0", want: ProtocolVersion{4, 0}},
		{input: "10.23", want: ProtocolVersion{10, 23}},
		{input: "", wantErr: true},
		{input: "4", wantErr: true},
		{input: "4.13.0", wantErr: true},
		{input: "4.x", wantErr: true},
		{input: "-1.0", wantErr: true},
		{input: ".13", wantErr: true},
		{input: "70000.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestCurrentIsCompatibleWithOlderMinors(t *testing.T) {
	cur, err := Parse(Current)
	require.NoError(t, err)

	assert.True(t, cur.Compatible(ProtocolVersion{cur.Major, 0}))
	assert.False(t, cur.Compatible(ProtocolVersion{cur.Major + 1, 0}))
}

func TestVersionCommand(t *testing.T) {
	root := &cobra.Command{Use: "tool"}
	AttachCobraVersionCommand(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Equal(t, Full()+"\n", buf.String())
	assert.Contains(t, buf.String(), "protocol: CA "+Current)
	assert.Contains(t, buf.String(), "version: "+Short())
}
