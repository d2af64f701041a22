package harness

import "strings"

// stdlibModules are top-level modules that ship with the interpreter and
// never need installing
var stdlibModules = map[string]bool{
	"sys": true, "os": true, "math": true, "json": true, "datetime": true,
	"re": true, "collections": true, "itertools": true, "functools": true,
	"random": true, "time": true, "abc": true, "asyncio": true,
	"builtins": true, "gc": true, "inspect": true, "marshal": true,
	"operator": true, "pickle": true, "pprint": true, "traceback": true,
	"types": true, "warnings": true, "weakref": true, "textwrap": true,
	"argparse": true, "base64": true, "configparser": true, "csv": true,
	"enum": true, "hashlib": true, "http": true, "logging": true,
	"pathlib": true, "platform": true, "queue": true, "shutil": true,
	"socket": true, "ssl": true, "string": true, "subprocess": true,
	"tempfile": true, "threading": true, "urllib": true, "uuid": true,
	"xml": true, "zipfile": true, "zlib": true, "contextlib": true,
	"io": true, "_pyodide": true,
	"typing": true, "dataclasses": true, "statistics": true, "decimal": true,
	"fractions": true, "copy": true, "glob": true, "struct": true,
	"heapq": true, "bisect": true, "array": true,
}

// distributions maps import names to the package that provides them where
// the two differ
var distributions = map[string]string{
	"sklearn": "scikit-learn",
	"cv2":     "opencv-python",
	"PIL":     "Pillow",
	"yaml":    "PyYAML",
	"bs4":     "beautifulsoup4",
}

// IsStdlib reports whether a top-level module ships with the interpreter
func IsStdlib(module string) bool {
	return stdlibModules[module]
}

// Distribution returns the installable package name for a module
func Distribution(module string) string {
	if d, ok := distributions[module]; ok {
		return d
	}
	return module
}

// ImportedModules returns the top-level modules named by import
// statements, in first-seen order. Relative imports are skipped.
func ImportedModules(imports []string) []string {
	seen := make(map[string]bool)
	var modules []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		modules = append(modules, name)
	}

	for _, line := range imports {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "import "):
			for _, part := range strings.Split(strings.TrimPrefix(line, "import "), ",") {
				name, _, _ := strings.Cut(strings.TrimSpace(part), " ")
				add(name)
			}
		case strings.HasPrefix(line, "from "):
			fields := strings.Fields(line)
			if len(fields) >= 2 && !strings.HasPrefix(fields[1], ".") {
				add(fields[1])
			}
		}
	}
	return modules
}

// PackagesFromImports returns the third-party packages a script needs,
// excluding standard-library modules
func PackagesFromImports(imports []string) []string {
	var packages []string
	for _, m := range ImportedModules(imports) {
		if !IsStdlib(m) {
			packages = append(packages, Distribution(m))
		}
	}
	return packages
}
