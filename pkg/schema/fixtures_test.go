package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/stretchr/testify/require"
)

// Primitives carry "class" up to 1.x and "kind" from 2.0 on
const defClass = `root: cib
elements:
  cib:
    attributes:
      validate-with: {type: string}
      epoch: {type: integer}
    children: [configuration]
    required: [configuration]
  configuration:
    children: [resources, constraints]
    required: [resources]
  resources:
    children: [primitive]
  primitive:
    attributes:
      id: {required: true, type: id}
      class: {required: true, enum: [ocf, lsb, systemd]}
  constraints:
    children: [rsc_location]
  rsc_location:
    attributes:
      id: {required: true, type: id}
      rsc: {required: true, type: idref}
      score: {type: score}
`

const defKind = `root: cib
elements:
  cib:
    attributes:
      validate-with: {type: string}
      epoch: {type: integer}
    children: [configuration]
    required: [configuration]
  configuration:
    children: [resources, constraints]
    required: [resources]
  resources:
    children: [primitive]
  primitive:
    attributes:
      id: {required: true, type: id}
      kind: {required: true, enum: [ocf, lsb, systemd]}
  constraints:
    children: [rsc_location]
  rsc_location:
    attributes:
      id: {required: true, type: id}
      rsc: {required: true, type: idref}
      score: {type: score}
`

// defKindStrict additionally requires a description on every primitive
const defKindStrict = `root: cib
elements:
  cib:
    attributes:
      validate-with: {type: string}
    children: [configuration]
  configuration:
    children: [resources]
  resources:
    children: [primitive]
  primitive:
    attributes:
      id: {required: true, type: id}
      kind: {required: true}
      description: {required: true}
`

const upgradeClassToKind = `description: rename primitive class to kind
steps:
  - select: //primitive
    rename_attribute: {from: class, to: kind}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// primaryDir lays out 1.0, 1.2 (class), 2.0, 3.0 (kind) and the 1.2 -> 2.0
// transform
func primaryDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "pacemaker-1.0.yaml", defClass)
	writeFile(t, dir, "pacemaker-1.2.yaml", defClass)
	writeFile(t, dir, "pacemaker-2.0.yaml", defKind)
	writeFile(t, dir, "pacemaker-3.0.yaml", defKind)
	writeFile(t, dir, "upgrade-1.2.yaml", upgradeClassToKind)
	writeFile(t, dir, "README", "not a schema")
	return dir
}

func mustBuild(t *testing.T, primary, secondary string) *Catalog {
	t.Helper()
	c, err := Build(primary, secondary)
	require.NoError(t, err)
	return c
}

func classDoc(t *testing.T, declared string) *cib.Document {
	t.Helper()
	doc, err := cib.ParseString(`<cib validate-with="` + declared + `" epoch="3">
  <configuration>
    <resources>
      <primitive id="web" class="ocf"/>
    </resources>
  </configuration>
</cib>`)
	require.NoError(t, err)
	return doc
}

func kindDoc(t *testing.T, declared string) *cib.Document {
	t.Helper()
	doc, err := cib.ParseString(`<cib validate-with="` + declared + `" epoch="3">
  <configuration>
    <resources>
      <primitive id="web" kind="ocf"/>
    </resources>
  </configuration>
</cib>`)
	require.NoError(t, err)
	return doc
}
