// Copyright (C) 2021 the ml-meteorology authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

// Licensing information
const legal=`ml-meteorology is Copyright (c) 2021 the ml-meteorology authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

The binary version of this program uses several open source libraries and components, which come with their own licensing terms:

| Library                                                                          | License type                            | Usage    |
|----------------------------------------------------------------------------------|-----------------------------------------|----------|
| [github.com/lucasb-eyer/go-colorful](https://github.com/lucasb-eyer/go-colorful) | MIT License                             |          |
| [github.com/pbnjay/memory](https://github.com/pbnjay/memory)                     | BSD 3-Clause "New" or "Revised" License |          |
| [github.com/valyala/fastrand](https://github.com/valyala/fastrand)               | MIT License                             |          |
| [golang.org/x/image](https://golang.org/x/image)                                 | BSD 3-Clause                            |          |
| [golang.org/x/exp](https://golang.org/x/exp)                                     | BSD 3-Clause                            | indirect |
| [gonum.org/v1/gonum](https://gonum.org/v1/gonum)                                 | BSD 3-Clause "New" or "Revised" License |          |
`
