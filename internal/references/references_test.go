package references

import (
	"reflect"
	"testing"

	"boardcore/pkg/domain"
)

func TestFindReferences(t *testing.T) {
	issue := domain.Issue{
		Title: "Closes #12",
		Body: "Depends on acme/api#7, #8 and #9.\n" +
			"Child of https://github.com/acme/app/issues/100\n" +
			"Related to #3\n" +
			"mentions #44 without a keyword",
	}
	refs := Extractor{}.FindReferences(issue)
	if len(refs) != 6 {
		t.Fatalf("expected 6 references, got %+v", refs)
	}

	want := domain.Reference{Number: 12, Type: domain.LinkCloses, Attrs: map[string]string{"phrase": "closes"}}
	if !reflect.DeepEqual(refs[0], want) {
		t.Fatalf("unexpected first reference %+v", refs[0])
	}
	if r := refs[1]; r.Owner != "acme" || r.Repo != "api" || r.Number != 7 || r.Type != domain.LinkDependsOn {
		t.Fatalf("unexpected cross-repo reference %+v", r)
	}
	for i, n := range []int{8, 9} {
		if r := refs[2+i]; r.Number != n || r.Type != domain.LinkDependsOn {
			t.Fatalf("unexpected list reference %+v", r)
		}
	}
	want = domain.Reference{Owner: "acme", Repo: "app", Number: 100, Type: domain.LinkChildOf, Attrs: map[string]string{"phrase": "child of"}}
	if !reflect.DeepEqual(refs[4], want) {
		t.Fatalf("unexpected url reference %+v", refs[4])
	}
	if refs[5].Type != domain.LinkLinkedTo {
		t.Fatalf("unexpected related reference %+v", refs[5])
	}
}

func TestFindReferencesDeduplicates(t *testing.T) {
	issue := domain.Issue{Title: "fixes #1", Body: "Fixes #1\nrequires #1"}
	refs := Extractor{}.FindReferences(issue)
	if len(refs) != 2 || refs[0].Type != domain.LinkCloses || refs[1].Type != domain.LinkDependsOn {
		t.Fatalf("unexpected references %+v", refs)
	}
}

func TestFindReferencesNone(t *testing.T) {
	if refs := (Extractor{}).FindReferences(domain.Issue{Body: "nothing to see, #0 is not an issue"}); len(refs) != 0 {
		t.Fatalf("expected no references, got %+v", refs)
	}
}
