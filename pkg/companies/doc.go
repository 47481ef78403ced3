// Package companies manages tenant companies: creation with unique slugs,
// profile updates, the active/suspended status toggle and hard deletion.
//
// Tenant-scoped actors see only their own company. Only roles that may mutate
// companies can create, update, suspend or delete them.
package companies
