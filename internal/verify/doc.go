// Package verify audits tool configurations against the manifest. It reads
// each tool's real files and flags drift: items the manifest marks
// disabled or deleted that a tool still has. An enabled item that a tool
// lacks is reported as absent, not as drift, since it may simply not have
// been synced yet.
package verify
