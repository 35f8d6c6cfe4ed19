package audit

import (
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"provenance-audit/internal/rawstore"
	"provenance-audit/internal/shared/util"
)

// timestampKeys are dropped before comparing JSON files for near-duplicates.
var timestampKeys = map[string]bool{
	"retrieved_at":         true,
	"collection_timestamp": true,
	"generated_at":         true,
}

// Misplacement is a raw file outside the directory its name assigns it to.
type Misplacement struct {
	Path      string `json:"path"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}

// DuplicateGroup lists files sharing a digest. Paths are sorted.
type DuplicateGroup struct {
	SHA256 string   `json:"sha256"`
	Paths  []string `json:"paths"`
}

// LayoutResult is the outcome of a raw layout scan. Paths are slash-separated and
// relative to the scan base; every list is sorted.
type LayoutResult struct {
	Roots          []string         `json:"roots"`
	Files          []string         `json:"files"`
	Misplaced      []Misplacement   `json:"misplaced"`
	Duplicates     []DuplicateGroup `json:"duplicates"`
	NearDuplicates []DuplicateGroup `json:"near_duplicates"`
	Unclassified   []string         `json:"unclassified"`
	Nonconforming  []string         `json:"nonconforming"`
	Errors         []string         `json:"errors"`
}

// Status is WARN for misplaced files, duplicates or unreadable files.
func (l LayoutResult) Status() Status {
	if len(l.Misplaced) > 0 || len(l.Duplicates) > 0 || len(l.Errors) > 0 {
		return StatusWarn
	}
	return StatusPass
}

// ScanRawLayout walks the canonical and legacy raw roots under base. Missing roots are
// not errors; the scan only fails when base itself cannot be read.
func ScanRawLayout(base string, cfg LayoutConfig) (LayoutResult, error) {
	if _, err := os.Stat(base); err != nil {
		return LayoutResult{}, err
	}
	res := LayoutResult{}
	exts := map[string]bool{}
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	type scanned struct {
		rel    string
		legacy string
		root   bool
	}
	var files []scanned
	walk := func(root string, legacy bool) {
		full := filepath.Join(base, filepath.FromSlash(root))
		if info, err := os.Stat(full); err != nil || !info.IsDir() {
			return
		}
		res.Roots = append(res.Roots, root)
		err := filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				res.Errors = append(res.Errors, err.Error())
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}
			s := scanned{rel: filepath.ToSlash(rel), root: !legacy}
			if legacy {
				s.legacy = root
			}
			files = append(files, s)
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}
	walk(cleanRoot(cfg.Root), false)
	for _, lr := range cfg.LegacyRoots {
		walk(cleanRoot(lr), true)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	root := cleanRoot(cfg.Root)
	byHash := map[string][]string{}
	byCanon := map[string][]string{}
	hashOf := map[string]string{}
	for _, f := range files {
		res.Files = append(res.Files, f.rel)
		name := path.Base(f.rel)
		bucket := bucketFor(cfg.Buckets, name)

		switch {
		case f.legacy != "":
			sub := strings.TrimPrefix(f.rel, f.legacy+"/")
			suggested := path.Join(root, sub)
			if bucket != "" {
				suggested = path.Join(root, bucket, name)
			}
			res.Misplaced = append(res.Misplaced, Misplacement{
				Path: f.rel, Suggested: suggested, Reason: "under legacy root " + f.legacy,
			})
		case bucket == "":
			res.Unclassified = append(res.Unclassified, f.rel)
		default:
			dir := path.Dir(strings.TrimPrefix(f.rel, root+"/"))
			if dir != bucket {
				res.Misplaced = append(res.Misplaced, Misplacement{
					Path: f.rel, Suggested: path.Join(root, bucket, name), Reason: "outside bucket " + bucket,
				})
			}
		}
		if strings.EqualFold(path.Ext(name), ".json") && f.root && timestamped(cfg.Buckets, bucket) {
			if _, err := rawstore.ParseName(name); err != nil {
				res.Nonconforming = append(res.Nonconforming, f.rel)
			}
		}

		full := filepath.Join(base, filepath.FromSlash(f.rel))
		data, err := os.ReadFile(full)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		sum := util.HashBytes(data)
		hashOf[f.rel] = sum
		byHash[sum] = append(byHash[sum], f.rel)
		if canon, ok := canonicalDigest(data); ok {
			byCanon[canon] = append(byCanon[canon], f.rel)
		}
	}

	res.Duplicates = groups(byHash, func([]string) bool { return true })
	res.NearDuplicates = groups(byCanon, func(paths []string) bool {
		distinct := map[string]bool{}
		for _, p := range paths {
			distinct[hashOf[p]] = true
		}
		return len(distinct) > 1
	})
	sort.Slice(res.Misplaced, func(i, j int) bool { return res.Misplaced[i].Path < res.Misplaced[j].Path })
	sort.Strings(res.Errors)
	return res, nil
}

func groups(m map[string][]string, keep func([]string) bool) []DuplicateGroup {
	var out []DuplicateGroup
	for sum, paths := range m {
		if len(paths) < 2 || !keep(paths) {
			continue
		}
		ps := append([]string(nil), paths...)
		sort.Strings(ps)
		out = append(out, DuplicateGroup{SHA256: sum, Paths: ps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Paths[0] < out[j].Paths[0] })
	return out
}

// canonicalDigest hashes a JSON document re-encoded with sorted keys and timestamp
// keys removed. ok is false for anything that is not JSON.
func canonicalDigest(data []byte) (string, bool) {
	v, err := decodeJSON(data)
	if err != nil {
		return "", false
	}
	out, err := json.Marshal(stripTimestamps(v))
	if err != nil {
		return "", false
	}
	return util.HashBytes(out), true
}

func stripTimestamps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if timestampKeys[k] {
				continue
			}
			out[k] = stripTimestamps(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripTimestamps(val)
		}
		return out
	default:
		return v
	}
}

// bucketFor picks the bucket with the longest matching prefix.
func bucketFor(rules []BucketRule, name string) string {
	best, bestLen := "", 0
	for _, r := range rules {
		for _, p := range r.Prefixes {
			if strings.HasPrefix(name, p) && len(p) > bestLen {
				best, bestLen = r.Name, len(p)
			}
		}
	}
	return best
}

func timestamped(rules []BucketRule, bucket string) bool {
	for _, r := range rules {
		if r.Name == bucket {
			return r.Timestamped
		}
	}
	return false
}

func cleanRoot(p string) string {
	return strings.TrimSuffix(path.Clean(filepath.ToSlash(p)), "/")
}
