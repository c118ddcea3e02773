package analyze

import "testing"

func TestAnalyzeFileGo(t *testing.T) {
	src := []byte(`package main

import "fmt"

type Greeter struct {
	Name string
}

func (g Greeter) Greet() string {
	return fmt.Sprintf("hello %s", g.Name)
}

func main() {
	g := Greeter{Name: "world"}
	fmt.Println(g.Greet())
}
`)
	p := NewParser()
	fa, ok := p.AnalyzeFile("main.go", src)
	if !ok {
		t.Fatalf("expected AnalyzeFile to succeed for a .go file")
	}
	if fa.Language != "go" {
		t.Fatalf("expected language 'go', got %q", fa.Language)
	}
	if fa.LOC != 16 {
		t.Fatalf("expected LOC 16, got %d", fa.LOC)
	}

	var names []string
	for _, f := range fa.Functions {
		names = append(names, f.Name)
	}
	if !containsStr(names, "Greet") || !containsStr(names, "main") {
		t.Fatalf("expected functions Greet and main, got %+v", fa.Functions)
	}

	if len(fa.Classes) == 0 {
		t.Fatalf("expected Greeter struct to be captured as a class-like symbol")
	}

	var importModules []string
	for _, imp := range fa.Imports {
		importModules = append(importModules, imp.Module)
	}
	if !containsStr(importModules, "fmt") {
		t.Fatalf("expected fmt import, got %+v", fa.Imports)
	}
}

func TestAnalyzeFileUnsupportedExtension(t *testing.T) {
	p := NewParser()
	if _, ok := p.AnalyzeFile("data.unknownext", []byte("whatever")); ok {
		t.Fatalf("expected AnalyzeFile to reject an unsupported extension")
	}
}

func TestAnalyzeFilePython(t *testing.T) {
	src := []byte(`import os


class Animal:
    def speak(self):
        return "..."


def main():
    a = Animal()
    print(a.speak())
`)
	p := NewParser()
	fa, ok := p.AnalyzeFile("animal.py", src)
	if !ok {
		t.Fatalf("expected AnalyzeFile to succeed for a .py file")
	}
	if fa.Language != "python" {
		t.Fatalf("expected language 'python', got %q", fa.Language)
	}

	var classNames []string
	for _, c := range fa.Classes {
		classNames = append(classNames, c.Name)
	}
	if !containsStr(classNames, "Animal") {
		t.Fatalf("expected class Animal, got %+v", fa.Classes)
	}

	var speakParent string
	for _, f := range fa.Functions {
		if f.Name == "speak" {
			speakParent = f.Parent
		}
	}
	if speakParent != "Animal" {
		t.Fatalf("expected speak's enclosing class to be Animal, got %q", speakParent)
	}
}

func containsStr(items []string, want string) bool {
	for _, s := range items {
		if s == want {
			return true
		}
	}
	return false
}
