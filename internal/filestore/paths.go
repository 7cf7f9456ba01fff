package filestore

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strings"
)

// ArchivePath is the public-zone path of an old file version, hashed on the
// file's current name: archive/a/ab/<archiveName>.
func ArchivePath(name, archiveName string) string {
	sum := md5.Sum([]byte(name))
	h := hex.EncodeToString(sum[:])
	return path.Join("archive", h[:1], h[:2], archiveName)
}

// DeletedKey is the content-addressed deleted-zone key for bytes with the
// given sha1, keeping the extension of name.
func DeletedKey(sha1Hex, name string) string {
	key := strings.ToLower(sha1Hex)
	if ext := path.Ext(name); ext != "" {
		key += strings.ToLower(ext)
	}
	return key
}

// DeletedPath shards key into three directory levels: a/b/c/<key>.
func DeletedPath(key string) string {
	if len(key) < 3 {
		return key
	}
	return path.Join(key[:1], key[1:2], key[2:3], key)
}

// ContentSHA1 returns the hex sha1 of data.
func ContentSHA1(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
