package markdown

import "testing"

func TestNormalizeHeadingSpacing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "first line heading",
			in:   "# Title\ntext",
			want: "\n# Title\n\ntext",
		},
		{
			name: "glued heading",
			in:   "para\n## Sub\nmore",
			want: "para\n\n## Sub\n\nmore",
		},
		{
			name: "already spaced",
			in:   "para\n\n## Sub\n\nmore",
			want: "para\n\n## Sub\n\nmore",
		},
		{
			name: "fenced hash comment untouched",
			in:   "text\n\n```bash\n# comment\necho hi\n```\n",
			want: "text\n\n```bash\n# comment\necho hi\n```\n",
		},
		{
			name: "hashtag is not a heading",
			in:   "text\n#tag\nmore",
			want: "text\n#tag\nmore",
		},
		{
			name: "indentation preserved",
			in:   "- item\n    nested code\n",
			want: "- item\n    nested code\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHeadingSpacing(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
