package content_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bitlatte/readnext/internal/content"
	"github.com/Bitlatte/readnext/internal/logger"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_ParsesFrontmatterAndMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/ai-for-saas.md", `---
title: AI for SaaS
category: Tech
tags: [ai, saas]
author: Jane
date: "2024-03-01"
summary: Why it matters
---
# Intro

## Details
`)
	writeFile(t, root, "posts/sales-playbook.md", `---
category: Sales
tags: "crm, outbound ,"
author: Bob
date: "2024-03-02T10:00:00Z"
slug: playbook
id: fixed-id
---
Body.
`)
	writeFile(t, root, "about.md", "Just an about page.\n")
	writeFile(t, root, "notes.txt", "ignored")

	items, err := content.NewLoader(logger.NewNop()).Load(root)
	require.NoError(t, err)
	require.Len(t, items, 3)

	playbook, ai, about := items[0], items[1], items[2]

	assert.Equal(t, "playbook", playbook.Slug)
	assert.Equal(t, "fixed-id", playbook.ID)
	assert.Equal(t, "Sales Playbook", playbook.Title)
	assert.Equal(t, []string{"crm", "outbound"}, playbook.Tags)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), playbook.Published.UTC())

	assert.Equal(t, "ai-for-saas", ai.Slug)
	assert.Equal(t, "AI for SaaS", ai.Title)
	assert.Equal(t, "Tech", ai.Category)
	assert.Equal(t, []string{"ai", "saas"}, ai.Tags)
	assert.Equal(t, "Jane", ai.Author)
	assert.Equal(t, "posts", ai.Type)
	assert.Equal(t, "/posts/ai-for-saas/", ai.Permalink)
	assert.Equal(t, "Why it matters", ai.Summary)
	assert.NotEmpty(t, ai.ID)
	assert.Contains(t, string(ai.ContentHTML), `<h2 id="details">Details</h2>`)

	assert.Equal(t, "about", about.Slug)
	assert.Equal(t, "page", about.Type)
	assert.True(t, about.Published.IsZero())
}

func TestLoad_IDsAreStable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A\n")

	first, err := content.NewLoader(logger.NewNop()).Load(root)
	require.NoError(t, err)
	second, err := content.NewLoader(logger.NewNop()).Load(root)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestLoad_DuplicateSlug(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "---\nslug: same\n---\n")
	writeFile(t, root, "b.md", "---\nslug: same\n---\n")

	_, err := content.NewLoader(logger.NewNop()).Load(root)
	assert.ErrorIs(t, err, content.ErrDuplicateSlug)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := content.NewLoader(logger.NewNop()).Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
