// Package sharedstrings implements the tiered shared-string resolver: a
// bounded RAM cache, seek-optimized spill files for the overflow, and a
// fallback re-scan of the original sharedStrings.xml for whatever neither
// tier holds.
package sharedstrings

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/mholt-reader/xlsxreader/internal/xmlpull"
	"github.com/mholt-reader/xlsxreader/internal/zippkg"
)

// Config mirrors spec §3's SharedStringsConfiguration.
type Config struct {
	UseCache                bool
	CacheSizeKilobyte       int
	UseOptimizedFiles       bool
	OptimizedFileEntryCount int
	KeepFileHandles         bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		UseCache:                true,
		CacheSizeKilobyte:       256,
		UseOptimizedFiles:       true,
		OptimizedFileEntryCount: 2500,
		KeepFileHandles:         true,
	}
}

// optimizedFile is spec §3's SharedStringsOptimizedFile.
type optimizedFile struct {
	path       string
	handle     *os.File
	buf        *bufio.Reader
	firstIndex int
	count      int
	curLineIdx int // -1 when closed/just-opened
	curValue   string
}

// Store is the shared-strings resolver described in spec §4.3.
type Store struct {
	cfg     Config
	tempDir string

	n int // total unique-string count

	cache []string // RAM cache; cache[i] holds string i for i < len(cache)

	spillFiles []*optimizedFile // sorted by firstIndex ascending

	// XML fallback state.
	ar            *zippkg.Archive
	xmlPartPath   string
	xmlReader     *xmlpull.Reader
	fallbackIndex int // index the xmlReader is currently positioned at, or -1
	lastValue     string
}

// Open runs the prescan described in spec §4.3 and returns a ready Store.
// If the shared-strings part does not exist or cannot be opened, Open
// returns an empty Store (get() will then always return "").
func Open(ar *zippkg.Archive, partPath string, tempDir string, cfg Config) (*Store, []error) {
	s := &Store{cfg: cfg, tempDir: tempDir, fallbackIndex: -1, ar: ar, xmlPartPath: partPath}

	if partPath == "" || !ar.Locate(partPath) {
		return s, nil
	}

	var warnings []error
	n, err := s.prescan()
	if err != nil {
		warnings = append(warnings, fmt.Errorf("sharedstrings: prescan failed, falling back to XML scan only: %w", err))
		s.n = 0 // unknown; get() treats n==0 as "do not bounds-check"
		return s, warnings
	}
	s.n = n
	return s, warnings
}

// Count returns N, the total number of unique shared strings (0 if
// unknown, e.g. the prescan failed).
func (s *Store) Count() int { return s.n }

func (s *Store) prescan() (int, error) {
	stream, err := s.ar.Open(s.xmlPartPath)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	r := xmlpull.Open(stream)
	defer r.Close()

	found, err := r.NextNS("sst", xmlpull.NSXLSXMain)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	uniqueCount := 0
	if v, ok := r.Attribute("uniqueCount", xmlpull.NSNone); ok {
		if n, perr := strconv.Atoi(v); perr == nil {
			uniqueCount = n
		}
	}
	if uniqueCount == 0 {
		return 0, nil
	}

	startMem := currentHeapBytes()

	writeToCache := s.cfg.UseCache
	index := 0
	for {
		ok, err := r.NextNS("si", xmlpull.NSXLSXMain)
		if err != nil {
			return index, err
		}
		if !ok {
			break
		}
		value, err := readSIConcatenatedText(r)
		if err != nil {
			return index, err
		}

		if writeToCache && s.cfg.UseCache {
			if currentHeapBytes()-startMem > uint64(s.cfg.CacheSizeKilobyte)*1024 {
				writeToCache = false
				// commit the cached prefix: slots past index came from
				// growth and hold no strings.
				if len(s.cache) > index {
					s.cache = s.cache[:index]
				}
			}
		}
		if err := s.prepare(index, value, writeToCache); err != nil {
			return index, err
		}
		index++
	}
	sortSpillFiles(s.spillFiles)
	return index, nil
}

// readSIConcatenatedText reads inside an already-matched <si> element,
// concatenating the text of every <t> descendant (flattening rich-text
// runs, per spec's non-goal on rich text) until the matching </si>.
func readSIConcatenatedText(r *xmlpull.Reader) (string, error) {
	var out []byte
	depth := 0
	for r.Read() {
		if r.IsClosingTag() {
			if r.LocalName() == "si" {
				if depth == 0 {
					return string(out), nil
				}
				depth--
			}
			continue
		}
		if m, _ := r.MatchesElement("si", xmlpull.NSXLSXMain); m {
			depth++
			continue
		}
		if m, _ := r.MatchesElement("t", xmlpull.NSXLSXMain); m {
			txt, err := r.Text()
			if err != nil {
				return string(out), err
			}
			out = append(out, txt...)
		}
	}
	return string(out), nil
}

// prepare implements spec §4.3's prepare(index, value, write_to_cache).
func (s *Store) prepare(index int, value string, writeToCache bool) error {
	if writeToCache {
		for len(s.cache) <= index {
			grow := len(s.cache) + 100
			next := make([]string, grow)
			copy(next, s.cache)
			s.cache = next
		}
		s.cache[index] = value
		return nil
	}
	if s.cfg.UseOptimizedFiles {
		return s.appendToSpill(index, value)
	}
	return nil
}

func (s *Store) appendToSpill(index int, value string) error {
	var cur *optimizedFile
	if len(s.spillFiles) > 0 {
		last := s.spillFiles[len(s.spillFiles)-1]
		if last.count < s.cfg.OptimizedFileEntryCount {
			cur = last
		}
	}
	if cur == nil {
		name := fmt.Sprintf("sst-%d-%s.spill", index, randomBase36Tag(5))
		path := filepath.Join(s.tempDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("sharedstrings: create spill file: %w", err)
		}
		cur = &optimizedFile{path: path, handle: f, firstIndex: index, curLineIdx: -1}
		s.spillFiles = append(s.spillFiles, cur)
	}

	enc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sharedstrings: encode spill entry: %w", err)
	}
	if _, err := cur.handle.Write(enc); err != nil {
		return fmt.Errorf("sharedstrings: write spill entry: %w", err)
	}
	if _, err := cur.handle.Write([]byte("\n")); err != nil {
		return fmt.Errorf("sharedstrings: write spill terminator: %w", err)
	}
	cur.count++
	if !s.cfg.KeepFileHandles {
		cur.handle.Close()
		cur.handle = nil
	}
	return nil
}

func sortSpillFiles(files []*optimizedFile) {
	for i := 1; i < len(files); i++ {
		j := i
		for j > 0 && files[j-1].firstIndex > files[j].firstIndex {
			files[j-1], files[j] = files[j], files[j-1]
			j--
		}
	}
}

// currentHeapBytes samples the process heap, used to detect when the RAM
// cache budget has been crossed. Per spec §5, this is a soft limit
// sampled only at </si> boundaries, so a single pathological string can
// push the tracked usage slightly over budget before the next sample.
func currentHeapBytes() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

func randomBase36Tag(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Get resolves a single shared-string index, per spec §4.3's get().
func (s *Store) Get(targetIndex int) (string, error) {
	if s.n > 0 && targetIndex >= s.n {
		return "", nil
	}
	if targetIndex >= 0 && targetIndex < len(s.cache) {
		return s.cache[targetIndex], nil
	}
	if s.cfg.UseOptimizedFiles && len(s.spillFiles) > 0 {
		if v, ok, err := s.getFromSpill(targetIndex); ok || err != nil {
			return v, err
		}
	}
	return s.getFromXMLFallback(targetIndex)
}

func (s *Store) getFromSpill(targetIndex int) (string, bool, error) {
	f := s.findSpillFile(targetIndex)
	if f == nil {
		return "", false, nil
	}
	localIdx := targetIndex - f.firstIndex

	if f.curLineIdx == localIdx {
		return f.curValue, true, nil
	}

	// f.buf is nil while f.handle is still the prescan's write handle.
	if f.handle == nil || f.buf == nil || f.curLineIdx > localIdx {
		if f.handle != nil {
			f.handle.Close()
		}
		h, err := os.Open(f.path)
		if err != nil {
			f.handle = nil
			return "", false, nil // malformed/unreadable spill -> fall through to XML
		}
		f.handle = h
		f.buf = bufio.NewReader(h)
		f.curLineIdx = -1
	}

	steps := localIdx - f.curLineIdx
	var value string
	for i := 0; i < steps; i++ {
		line, err := f.buf.ReadString('\n')
		if err != nil && line == "" {
			return "", false, nil // EOF before target: fall through to XML, per spec
		}
		line = trimNewline(line)
		if i == steps-1 {
			if jerr := json.Unmarshal([]byte(line), &value); jerr != nil {
				return "", false, nil // malformed JSON: fall through to XML, per spec
			}
		}
	}
	f.curLineIdx = localIdx
	f.curValue = value

	if !s.cfg.KeepFileHandles {
		f.handle.Close()
		f.handle = nil
		f.buf = nil
		f.curLineIdx = -1
	}
	return value, true, nil
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}

func (s *Store) findSpillFile(targetIndex int) *optimizedFile {
	var best *optimizedFile
	for _, f := range s.spillFiles {
		if f.firstIndex <= targetIndex {
			if best == nil || f.firstIndex > best.firstIndex {
				best = f
			}
		}
	}
	if best == nil {
		return nil
	}
	if targetIndex >= best.firstIndex+best.count {
		return nil
	}
	return best
}

func (s *Store) getFromXMLFallback(targetIndex int) (string, error) {
	if s.xmlPartPath == "" || !s.ar.Locate(s.xmlPartPath) {
		return "", nil
	}

	if s.fallbackIndex == targetIndex && s.xmlReader != nil {
		return s.lastValue, nil
	}

	if s.xmlReader == nil || targetIndex < s.fallbackIndex {
		s.closeFallback()
		stream, err := s.ar.Open(s.xmlPartPath)
		if err != nil {
			return "", nil
		}
		s.xmlReader = xmlpull.Open(stream)
		s.fallbackIndex = -1
	}

	for s.fallbackIndex < targetIndex {
		ok, err := s.xmlReader.NextNS("si", xmlpull.NSXLSXMain)
		if err != nil || !ok {
			if !s.cfg.KeepFileHandles {
				s.closeFallback()
			}
			return "", nil // EOF before target: empty string, per spec
		}
		s.fallbackIndex++
	}

	value, err := readSIConcatenatedText(s.xmlReader)
	if err != nil {
		if !s.cfg.KeepFileHandles {
			s.closeFallback()
		}
		return "", nil
	}
	s.lastValue = value

	if !s.cfg.KeepFileHandles {
		s.closeFallback()
	}
	return value, nil
}

func (s *Store) closeFallback() error {
	if s.xmlReader != nil {
		s.xmlReader.Close()
		s.xmlReader = nil
	}
	s.fallbackIndex = -1
	return nil
}

// TempFiles returns the paths of every spill file created during the
// prescan.
func (s *Store) TempFiles() []string {
	paths := make([]string, len(s.spillFiles))
	for i, f := range s.spillFiles {
		paths[i] = f.path
	}
	return paths
}

// Close closes all open handles (spill files and the XML fallback) but
// does not unlink any file; the caller (the Reader façade) owns deletion.
func (s *Store) Close() error {
	for _, f := range s.spillFiles {
		if f.handle != nil {
			f.handle.Close()
			f.handle = nil
		}
	}
	return s.closeFallback()
}
