package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AddFeed appends a feed entry to the config file, seeding it on first
// run. The edit goes through the yaml node tree so comments and key order
// survive. Returns false when the url is already subscribed.
func AddFeed(path string, feed FeedConfig) (bool, error) {
	if path == "" {
		path = DefaultPath()
	}
	if feed.URL == "" {
		return false, fmt.Errorf("add feed: url is required")
	}
	if feed.Name == "" {
		feed.Name = feed.URL
	}

	doc, err := readDocument(path)
	if err != nil {
		return false, fmt.Errorf("add feed: %w", err)
	}
	feeds, err := feedsSequence(doc)
	if err != nil {
		return false, fmt.Errorf("add feed: %w", err)
	}

	for _, item := range feeds.Content {
		if itemURL(item) == feed.URL {
			return false, nil
		}
	}

	feeds.Content = append(feeds.Content, &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalarNode("name"), scalarNode(feed.Name),
			scalarNode("url"), scalarNode(feed.URL),
		},
	})

	if err := writeDocument(path, doc); err != nil {
		return false, fmt.Errorf("add feed: %w", err)
	}

	return true, nil
}

// RemoveFeed deletes the feed entry with the given url from the config
// file. Returns false when no entry matched.
func RemoveFeed(path, feedURL string) (bool, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	doc, err := readDocument(path)
	if err != nil {
		return false, fmt.Errorf("remove feed: %w", err)
	}
	feeds, err := feedsSequence(doc)
	if err != nil {
		return false, fmt.Errorf("remove feed: %w", err)
	}

	kept := feeds.Content[:0]
	for _, item := range feeds.Content {
		if itemURL(item) != feedURL {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(feeds.Content) {
		return false, nil
	}
	feeds.Content = kept

	if err := writeDocument(path, doc); err != nil {
		return false, fmt.Errorf("remove feed: %w", err)
	}

	return true, nil
}

// readDocument parses the config file into a node tree, seeding the file
// from the embedded defaults when missing.
func readDocument(path string) (*yaml.Node, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaults(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse %s: root must be a mapping", path)
	}

	return &doc, nil
}

func writeDocument(path string, doc *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// feedsSequence returns the feeds sequence node, creating or reshaping it
// when the key is absent, null, or flow-styled.
func feedsSequence(doc *yaml.Node) (*yaml.Node, error) {
	root := doc.Content[0]

	node := mappingValue(root, "feeds")
	if node == nil {
		node = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		root.Content = append(root.Content, scalarNode("feeds"), node)

		return node, nil
	}

	// "feeds:" with no value parses as a null scalar.
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		node.Kind = yaml.SequenceNode
		node.Tag = "!!seq"
		node.Value = ""
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("feeds must be a sequence")
	}
	// "feeds: []" is flow style; block style reads better once items exist.
	node.Style = 0

	return node, nil
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}

	return nil
}

func itemURL(item *yaml.Node) string {
	if item.Kind != yaml.MappingNode {
		return ""
	}
	if node := mappingValue(item, "url"); node != nil {
		return node.Value
	}

	return ""
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
