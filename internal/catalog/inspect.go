package catalog

import (
	"fmt"

	gguf "github.com/gpustack/gguf-parser-go"
)

// Info is the header metadata of a GGUF weights file.
type Info struct {
	Name          string
	Architecture  string
	BlockCount    int
	ContextLength int
	FileType      string
	Parameters    string
	ChatTemplate  string
}

// Inspect parses the GGUF header of a downloaded model.
func (c *Catalog) Inspect(name string) (Info, error) {
	d, err := c.Get(name)
	if err != nil {
		return Info{}, err
	}
	if !d.Downloaded {
		return Info{}, notDownloadedError{name: name}
	}
	return InspectFile(d.Path)
}

// InspectFile parses the GGUF header at path.
func InspectFile(path string) (Info, error) {
	f, err := gguf.ParseGGUFFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("parse gguf %s: %w", path, err)
	}
	md := f.Metadata()
	arch := f.Architecture()
	info := Info{
		Name:          md.Name,
		Architecture:  arch.Architecture,
		BlockCount:    int(arch.BlockCount),
		ContextLength: int(arch.MaximumContextLength),
		FileType:      md.FileType.String(),
		Parameters:    md.Parameters.String(),
	}
	if v, ok := f.Header.MetadataKV.Get("tokenizer.chat_template"); ok {
		info.ChatTemplate = v.ValueString()
	}
	return info, nil
}

// BlockCount returns the transformer block count of name, or 0 when the
// header cannot be read.
func (c *Catalog) BlockCount(name string) int {
	info, err := c.Inspect(name)
	if err != nil {
		c.log.Debug().Err(err).Str("model", name).Msg("gguf inspection failed")
		return 0
	}
	return info.BlockCount
}
