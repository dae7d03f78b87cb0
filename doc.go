// Package litefs implements a log-structured, copy-on-write filesystem
// compatible with the on-disk format of littlefs. It is built on top of a
// block device exposing only "read a block" and "program a block", and
// exposes a path-keyed Get/Set/Delete/Mkdir/List API over directories and
// files stored in CRC-protected metadata pairs and CTZ skip-list files.
package litefs
