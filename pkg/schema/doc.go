/*
Package schema maintains the catalog of configuration schema versions and
drives documents through validation and upgrades.

# Catalog

A Catalog is built from two directories. The primary directory ships with
the software and must hold at least one definition; the secondary
directory holds schemas received from remote nodes and may be empty or
missing. Files are recognized by name:

	pacemaker-<major>.<minor>.yaml   validation rules of that version
	upgrade-<major>.<minor>.yaml     transform from that version to the next

Every other file is ignored. Directory listing uses godirwalk, files are
read and compiled concurrently, and content-identical files (symlinked
aliases in particular) share a single compiled Definition, identified by
its xxhash digest.

Real versions are ordered by (major, minor). Two sentinels always follow:
pacemaker-next, which any document declaring a version newer than the
newest known one maps to, and none, which disables validation. Both accept
every document.

A version present in both directories is allowed only when the files are
interchangeable (same content or the same file behind a symlink); the
secondary entry is kept. Anything else fails with ErrDuplicateVersion.
Catalogs are immutable: a rebuild produces a new Catalog, and a failed
build produces nothing.

# Definitions

Definitions describe the allowed structure in YAML:

	root: cib
	elements:
	  cib:
	    attributes:
	      validate-with: {required: true}
	      epoch: {type: integer}
	    children: [configuration, status]
	    required: [configuration]
	  status:
	    any_attributes: true
	    any_children: true

Attribute types are string, id, idref, integer, score, boolean, datetime,
duration and version. id values must be unique within the document and
idref values must name one of them. Validation reports every problem it
finds in a *ValidationError.

# Transforms

	description: rename interval-origin
	steps:
	  - select: //op
	    rename_attribute: {from: interval-origin, to: origin}
	  - select: //nvpair[@name='is-managed-default']
	    remove: true

Each step selects elements with an etree path and applies exactly one of
rename, remove, rename_attribute, set_attribute or remove_attribute.

# Accepting documents

Accept starts at the version a document declares (see BestSchemaFor). A
valid document is accepted as is. An invalid one is upgraded one step
while the current version has a transform, and rejected with
ErrNoMigrationPath once it has none. Upgrade goes further and moves a
valid document up to the newest version it still validates against.
Neither ever modifies the document it is given.
*/
package schema
