/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultLabel is a label of latex table if none was given
const DefaultLabel = "rtjitter"

var latexHeader = []string{
	`\textbf{TS (ms)}`,
	`\textbf{FS (Hz)}`,
	`\textbf{TE (s)}`,
	`\textbf{TM (s)}`,
	`\textbf{DT (ms)}`,
	`\textbf{ET (\%)}`,
	`\textbf{DMin (us)}`,
	`\textbf{EMin (\%)}`,
	`\textbf{DMax (us)}`,
	`\textbf{EMax (\%)}`,
	`\textbf{Mean (us)}`,
	`\textbf{Variance}`,
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// WriteLatex writes rows as a tabularx table ready to be included into a document
func WriteLatex(w io.Writer, rows []Row, caption, label string) error {
	if label == "" {
		label = DefaultLabel
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `\begin{table}`)
	fmt.Fprintln(bw, `\centering`)
	fmt.Fprintf(bw, "\\begin{tabularx}{\\textwidth}{|%s}\n", strings.Repeat("X|", len(latexHeader)))
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintf(bw, "%s \\\\\n", strings.Join(latexHeader, " & "))
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintln(bw, `\hline`)
	for _, r := range rows {
		fmt.Fprintf(bw, "%s \\\\\n", strings.Join(r.Records(), " & "))
	}
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintln(bw, `\end{tabularx}`)
	if caption != "" {
		fmt.Fprintf(bw, "\\caption{%s}\n", latexEscaper.Replace(caption))
	}
	fmt.Fprintf(bw, "\\label{tab:%s}\n", label)
	fmt.Fprintln(bw, `\end{table}`)
	return bw.Flush()
}
