package cib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCIB = `<cib validate-with="pacemaker-3.0" admin_epoch="1" epoch="12" num_updates="3">
  <configuration>
    <crm_config>
      <cluster_property_set id="cib-bootstrap-options">
        <nvpair id="opt-stonith" name="stonith-enabled" value="false"/>
      </cluster_property_set>
    </crm_config>
  </configuration>
</cib>`

func TestParse(t *testing.T) {
	doc, err := ParseString(sampleCIB)
	require.NoError(t, err)

	assert.Equal(t, TagCIB, doc.Root().Tag)
	assert.Equal(t, "pacemaker-3.0", doc.ValidateWith())
	assert.NotNil(t, doc.Section("configuration/crm_config"))
	assert.Nil(t, doc.Section("configuration/nodes"))
}

func TestParseErrors(t *testing.T) {
	_, err := ParseString("<cib")
	assert.Error(t, err)

	_, err = ParseString("")
	assert.Error(t, err)

	_, err = FromTree(nil)
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cib.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCIB), 0644))

	doc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pacemaker-3.0", doc.ValidateWith())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestWithValidateWithCopies(t *testing.T) {
	doc, err := ParseString(sampleCIB)
	require.NoError(t, err)

	upgraded := doc.WithValidateWith("pacemaker-3.1")
	assert.Equal(t, "pacemaker-3.1", upgraded.ValidateWith())
	assert.Equal(t, "pacemaker-3.0", doc.ValidateWith())

	upgraded.Root().CreateAttr("epoch", "99")
	assert.Equal(t, 12, doc.Generation().Epoch)
}

func TestValidateWithMissing(t *testing.T) {
	doc, err := ParseString(`<cib/>`)
	require.NoError(t, err)
	assert.Equal(t, "", doc.ValidateWith())
}

func TestGeneration(t *testing.T) {
	doc, err := ParseString(sampleCIB)
	require.NoError(t, err)

	gen := doc.Generation()
	assert.Equal(t, Generation{AdminEpoch: 1, Epoch: 12, NumUpdates: 3}, gen)
	assert.Equal(t, "1.12.3", gen.String())

	assert.Equal(t, 0, gen.Compare(gen))
	assert.Equal(t, -1, gen.Compare(Generation{AdminEpoch: 2}))
	assert.Equal(t, 1, gen.Compare(Generation{AdminEpoch: 1, Epoch: 12, NumUpdates: 2}))

	bare, err := ParseString(`<cib epoch="x"/>`)
	require.NoError(t, err)
	assert.Equal(t, Generation{}, bare.Generation())
}

func TestSerializeRoundTrip(t *testing.T) {
	doc, err := ParseString(sampleCIB)
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc.String(), again.String())

	indented, err := doc.Indented(2)
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n  <configuration>")
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"100", 100, false},
		{"-5", -5, false},
		{"INFINITY", Infinity, false},
		{"+INFINITY", Infinity, false},
		{"-INFINITY", -Infinity, false},
		{"infinity", Infinity, false},
		{"2000000", Infinity, false},
		{"-2000000", -Infinity, false},
		{"", 0, true},
		{"high", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScore(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
