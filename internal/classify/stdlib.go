package classify

// DefaultStdlib returns the frozen top-level standard-library module names
// for the given target version string. Only one frozen set exists today
// ("3.11"); unknown versions fall back to it rather than failing, since the
// set changes by addition only at the top level relevant to this bundler.
func DefaultStdlib(targetVersion string) []string {
	return []string{
		"abc", "argparse", "array", "ast", "asyncio", "base64", "bisect",
		"builtins", "calendar", "collections", "configparser", "contextlib",
		"copy", "csv", "ctypes", "dataclasses", "datetime", "decimal",
		"difflib", "dis", "enum", "errno", "fnmatch", "functools", "gc",
		"getpass", "glob", "gzip", "hashlib", "heapq", "hmac", "html", "http",
		"importlib", "inspect", "io", "ipaddress", "itertools", "json",
		"keyword", "logging", "math", "mimetypes", "multiprocessing", "numbers",
		"operator", "os", "pathlib", "pickle", "platform", "pprint", "queue",
		"random", "re", "sched", "secrets", "select", "shelve", "shlex",
		"shutil", "signal", "site", "socket", "sqlite3", "ssl", "stat",
		"statistics", "string", "struct", "subprocess", "sys", "tarfile",
		"tempfile", "textwrap", "threading", "time", "timeit", "token",
		"tokenize", "traceback", "types", "typing", "unicodedata", "unittest",
		"urllib", "uuid", "venv", "warnings", "weakref", "xml", "zipfile",
		"zlib",
	}
}
