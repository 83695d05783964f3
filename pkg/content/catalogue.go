package content

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed catalogue/gitignore/*.gitignore
var gitignoreFS embed.FS

//go:embed catalogue/license/*.txt
var licenseFS embed.FS

//go:embed catalogue/required/*.md
var requiredFS embed.FS

//go:embed catalogue/readme/default.md
var readmeFS embed.FS

// readmeCatalogue returns the single built-in README template (spec §4.4
// "README/LICENSE/.gitignore from built-in catalogues").
func readmeCatalogue() []byte {
	data, err := readmeFS.ReadFile("catalogue/readme/default.md")
	if err != nil {
		panic("content: embedded default README missing: " + err.Error())
	}
	return data
}

// gitignoreCatalogue loads a .gitignore body by its language tag (spec §4.4
// "Built-in catalogue entries for gitignore are keyed by language tag").
func gitignoreCatalogue(languageTag string) ([]byte, error) {
	return readCatalogueEntry(gitignoreFS, "catalogue/gitignore", languageTag, ".gitignore")
}

// licenseCatalogue loads a LICENSE body by SPDX identifier (spec §4.4
// "License entries are keyed by identifier (MIT, Apache-2.0, GPL-3.0)").
func licenseCatalogue(identifier string) ([]byte, error) {
	return readCatalogueEntry(licenseFS, "catalogue/license", identifier, ".txt")
}

// requiredFileCatalogue supplies placeholder content for an
// organisation-mandated file the request did not otherwise provide
// (spec §4.4 "the EffectiveConfiguration's required-file policy is
// honoured... added to the emitted set if absent").
func requiredFileCatalogue(name string) ([]byte, bool) {
	content, err := requiredFS.ReadFile("catalogue/required/" + name)
	if err != nil {
		return nil, false
	}
	return content, true
}

func readCatalogueEntry(fs embed.FS, dir, key, ext string) ([]byte, error) {
	data, err := fs.ReadFile(fmt.Sprintf("%s/%s%s", dir, key, ext))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCatalogueEntry, key)
	}
	return data, nil
}

// gitignoreLanguages lists the recognised tags, for producing a precise
// TemplateNotFound error message when a request names an unknown one.
func gitignoreLanguages() []string {
	entries, _ := gitignoreFS.ReadDir("catalogue/gitignore")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".gitignore"))
	}
	return names
}

func licenseIdentifiers() []string {
	entries, _ := licenseFS.ReadDir("catalogue/license")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	return names
}
