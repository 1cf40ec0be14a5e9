/*
Package confstore is the engine's persistence layer, grounded on the same
narrow CRUD-shaped interface the original cluster store used, reimplemented
over plain files instead of an embedded database: a single-host supervisor
persists a handful of small records, not a replicated dataset, so a
directory of JSON/YAML/TOML files is the simpler and more operable choice.

Each record gets a configuration file (whatever format it was authored in,
defaulting to YAML for new records) and a metadata file ending in
".meta.json", which ListConfigs always skips when enumerating configurations.
*/
package confstore
