// Package dictionary parses and searches a story's dictionary: the sorted
// (or, per the header's own count sign, unsorted) list of known vocabulary
// words the tokenise opcode matches parsed input against.
//
// Grounded on the teacher's own dictionary.ParseDictionary/Dictionary.Find,
// adapted to read through zmem.Memory instead of a bare []uint8 slice, to
// use zstring.DecodeString instead of the undefined zstring.Decode the
// teacher's draft called (see DESIGN.md's "retrieval pack inconsistency"
// note), and to return *zerr.Error instead of indexing past the header's
// declared bounds.
package dictionary

import (
	"bytes"

	"github.com/tmarlowe/zgo/zerr"
	"github.com/tmarlowe/zgo/zmem"
	"github.com/tmarlowe/zgo/zstring"
)

// Header is the dictionary's own preamble: the input codes that separate
// words (punctuation treated as its own token), the byte length of each
// entry, and how many entries follow.
type Header struct {
	InputCodes  []uint8
	EntryLength uint8
	EntryCount  int
	Sorted      bool // a negative count in the story file means entries are not sorted
}

// Entry is one parsed dictionary word: the encoded bytes as stored (used
// for byte-exact comparison against a freshly encoded input word), the
// decoded text (for diagnostics), and the data bytes following the encoded
// word (flags and argument data specific to the story).
type Entry struct {
	Address     uint32
	EncodedWord []uint8
	DecodedWord string
	Data        []uint8
}

// Dictionary is a story's fully parsed vocabulary.
type Dictionary struct {
	Header  Header
	Entries []Entry
}

// entryWordLength is the number of bytes the packed dictionary word itself
// occupies: 2 zchar-words (4 bytes) pre-v4, 3 zchar-words (6 bytes) v4+.
func entryWordLength(version uint8) uint32 {
	if version > 3 {
		return 6
	}
	return 4
}

// Parse reads the dictionary at mem's header-declared DictionaryBase.
func Parse(mem *zmem.Memory, alphabets zstring.Alphabets) (*Dictionary, error) {
	base := uint32(mem.Header().DictionaryBase)
	version := mem.Header().Version

	numInputCodes, err := mem.GetByte(base)
	if err != nil {
		return nil, err
	}

	inputCodes := make([]uint8, numInputCodes)
	for i := range inputCodes {
		b, err := mem.GetByte(base + 1 + uint32(i))
		if err != nil {
			return nil, err
		}
		inputCodes[i] = b
	}

	entryLength, err := mem.GetByte(base + 1 + uint32(numInputCodes))
	if err != nil {
		return nil, err
	}
	countWord, err := mem.GetWord(base + 2 + uint32(numInputCodes))
	if err != nil {
		return nil, err
	}
	count := int16(countWord)
	sorted := count >= 0
	if !sorted {
		count = -count
	}

	wordLen := entryWordLength(version)
	entryPtr := base + 4 + uint32(numInputCodes)
	entries := make([]Entry, 0, count)

	for ix := 0; ix < int(count); ix++ {
		encoded, err := mem.Slice(entryPtr, entryPtr+wordLen)
		if err != nil {
			return nil, err
		}
		decoded, _, err := zstring.DecodeString(mem, entryPtr, alphabets)
		if err != nil {
			return nil, zerr.New(zerr.InvalidString, "dictionary entry %d at 0x%x: %v", ix, entryPtr, err)
		}
		data, err := mem.Slice(entryPtr+wordLen, entryPtr+uint32(entryLength))
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Address:     entryPtr,
			EncodedWord: append([]byte(nil), encoded...),
			DecodedWord: decoded,
			Data:        append([]byte(nil), data...),
		})

		entryPtr += uint32(entryLength)
	}

	return &Dictionary{
		Header: Header{
			InputCodes:  inputCodes,
			EntryLength: entryLength,
			EntryCount:  int(count),
			Sorted:      sorted,
		},
		Entries: entries,
	}, nil
}

// EncodeWord encodes a parsed input word the same way the dictionary's own
// entries are packed, so the result can be compared byte-for-byte against
// Entry.EncodedWord. Grounded on the encoded-word-length convention Parse
// itself reads entries with (2 zchar-words pre-v4, 3 v4+).
func EncodeWord(word string, version uint8, alphabets zstring.Alphabets) []byte {
	numWords := 2
	if version > 3 {
		numWords = 3
	}
	return zstring.EncodeToken(word, version, alphabets, numWords)
}

// Find returns the address of the dictionary entry whose encoded word
// matches encodedWord exactly, or 0 if the word is not in the dictionary --
// the standard's own "not found" sentinel for tokenise.
func (d *Dictionary) Find(encodedWord []byte) uint32 {
	for _, e := range d.Entries {
		if bytes.Equal(e.EncodedWord, encodedWord) {
			return e.Address
		}
	}
	return 0
}
