package parser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/uigraph/pkg/util"
)

func TestConcurrentParsingSmallPool(t *testing.T) {
	manager := NewParserManagerWithPoolSize(util.NopLogger(), 2)
	defer manager.Close()

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("export const C%d = () => <div>%d</div>;", i, i)
			tree, err := manager.Parse([]byte(src), LanguageJSX)
			if err != nil {
				errs <- err
				return
			}
			tree.Close()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stats := manager.GetStats()
	assert.Equal(t, goroutines, stats.ParsesCalled)
	assert.LessOrEqual(t, stats.ParsersCreated, 2)
}

func TestConcurrentMultiLanguage(t *testing.T) {
	manager := NewParserManager(util.NopLogger())
	defer manager.Close()

	sources := map[Language]string{
		LanguageJavaScript: "function f() { return 1; }",
		LanguageJSX:        "const A = () => <A.B />;",
		LanguageTypeScript: "let x: number = 1;",
		LanguageTSX:        "const B = (p: { n: number }) => <span>{p.n}</span>;",
	}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for lang, src := range sources {
			wg.Add(1)
			go func(lang Language, src string) {
				defer wg.Done()
				tree, err := manager.Parse([]byte(src), lang)
				if assert.NoError(t, err, lang.String()) {
					tree.Close()
				}
			}(lang, src)
		}
	}
	wg.Wait()

	assert.Equal(t, 20, manager.GetStats().ParsesCalled)
}
