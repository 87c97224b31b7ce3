package arxiv

// Feed ist das Wurzelelement der Atom-Antwort der arXiv-API.
type Feed struct {
	TotalResults int     `xml:"totalResults"`
	StartIndex   int     `xml:"startIndex"`
	Entries      []Entry `xml:"entry"`
}

// Entry ist ein einzelner Paper-Eintrag im Atom-Feed.
type Entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Updated    string     `xml:"updated"`
	Authors    []Author   `xml:"author"`
	Categories []Category `xml:"category"`
	Links      []Link     `xml:"link"`
}

// Author ist ein Autor eines Eintrags.
type Author struct {
	Name string `xml:"name"`
}

// Category trägt den Kategorie-Code als term-Attribut.
type Category struct {
	Term string `xml:"term,attr"`
}

// Link ist ein Verweis eines Eintrags (Abstract-Seite, PDF, DOI).
type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
